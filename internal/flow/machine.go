// Package flow drives the question flows of DossierPipe.
//
// Machine is the conversation state machine: given a flow type, the step the
// client says it is on and the answers it echoes back, it re-derives the
// answer map against the question catalog, validates the submitted value and
// computes the next visible question. It holds no per-user state; the
// SessionManager persists the running answer map between turns.
package flow

import (
	"fmt"
	"log/slog"

	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/models"
)

// Turn is the state returned to the client after every call.
type Turn struct {
	FlowType       models.FlowType   `json:"flow_type"`
	Step           int               `json:"step"`
	Question       *catalog.Question `json:"question,omitempty"`
	Answers        models.Answers    `json:"answers"`
	IsLastQuestion bool              `json:"is_last_question"`
	Complete       bool              `json:"complete"`
}

// Machine is the conversation state machine. It is safe for concurrent use.
type Machine struct {
	catalogs *catalog.Registry
}

// NewMachine creates a state machine over the given catalogs.
func NewMachine(catalogs *catalog.Registry) *Machine {
	return &Machine{catalogs: catalogs}
}

func (m *Machine) catalogFor(flowType models.FlowType) (*catalog.Catalog, error) {
	c, ok := m.catalogs.Get(flowType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown flow type %q", models.ErrInvalidFlowState, flowType)
	}
	return c, nil
}

// Start returns the first turn of a fresh flow instance.
func (m *Machine) Start(flowType models.FlowType) (Turn, error) {
	c, err := m.catalogFor(flowType)
	if err != nil {
		slog.Warn("Machine.Start: unknown flow type", "flowType", flowType)
		return Turn{}, err
	}
	turn := m.advance(c, 0, models.Answers{})
	slog.Debug("Machine.Start", "flowType", flowType, "step", turn.Step, "complete", turn.Complete)
	return turn, nil
}

// Submit validates value as the answer to the question at step and returns
// the next turn. On a validation error (ErrMissingAnswer or
// ErrInvalidAnswerType) the returned turn re-asks the same question with the
// reconciled answers. ErrInvalidFlowState means the echoed context cannot be
// reconciled with the catalog and the flow must be restarted.
func (m *Machine) Submit(flowType models.FlowType, step int, answersSoFar models.Answers, value models.AnswerValue) (Turn, error) {
	c, err := m.catalogFor(flowType)
	if err != nil {
		return Turn{}, err
	}
	answers, err := reconcile(c, step, answersSoFar)
	if err != nil {
		slog.Warn("Machine.Submit: context rejected", "flowType", flowType, "step", step, "error", err)
		return Turn{}, err
	}
	q, _ := c.At(step)
	normalized, err := Normalize(q, value)
	if err != nil {
		slog.Debug("Machine.Submit: answer rejected", "flowType", flowType, "question", q.ID, "error", err)
		return m.turnAt(c, step, answers), err
	}
	if !normalized.IsEmpty() {
		answers[q.ID] = normalized
	}
	turn := m.advance(c, step+1, answers)
	slog.Debug("Machine.Submit: answer accepted", "flowType", flowType, "question", q.ID, "nextStep", turn.Step, "complete", turn.Complete)
	return turn, nil
}

// IsLastQuestion reports whether no question after step can become visible
// given the answers so far. It has no side effects and may be called
// speculatively before the current question is answered. The terminal step
// of a complete flow reports true.
func (m *Machine) IsLastQuestion(flowType models.FlowType, step int, answersSoFar models.Answers) (bool, error) {
	c, err := m.catalogFor(flowType)
	if err != nil {
		return false, err
	}
	if step == c.Len() {
		return true, nil
	}
	answers, err := reconcile(c, step, answersSoFar)
	if err != nil {
		return false, err
	}
	return nextVisible(c, step+1, answers) < 0, nil
}

// Sanitize rebuilds a complete answer map sent outside a running flow, as
// when a document is assembled from answers the client kept itself. Every
// visible question is normalized in catalog order; unknown and hidden keys
// are dropped and unanswered questions are left out. A value that does not
// fit its question fails with ErrInvalidAnswerType.
func (m *Machine) Sanitize(flowType models.FlowType, given models.Answers) (models.Answers, error) {
	c, err := m.catalogFor(flowType)
	if err != nil {
		return nil, err
	}
	answers := make(models.Answers, len(given))
	for _, q := range c.Questions {
		if !q.VisibleIf.Satisfied(answers) {
			continue
		}
		raw, ok := given.Value(q.ID)
		if !ok || raw.IsEmpty() {
			continue
		}
		v, err := Normalize(q, raw)
		if err != nil {
			slog.Debug("Machine.Sanitize: answer rejected", "flowType", flowType, "question", q.ID, "error", err)
			return nil, err
		}
		if !v.IsEmpty() {
			answers[q.ID] = v
		}
	}
	if dropped := len(given) - len(answers); dropped > 0 {
		slog.Debug("Machine.Sanitize: dropped answers", "flowType", flowType, "count", dropped)
	}
	return answers, nil
}

// turnAt builds the turn that asks the question at step.
func (m *Machine) turnAt(c *catalog.Catalog, step int, answers models.Answers) Turn {
	q := c.Questions[step]
	return Turn{
		FlowType:       c.FlowType,
		Step:           step,
		Question:       &q,
		Answers:        answers,
		IsLastQuestion: nextVisible(c, step+1, answers) < 0,
	}
}

// advance walks forward from index from to the next visible question, or
// returns the terminal turn when none exists.
func (m *Machine) advance(c *catalog.Catalog, from int, answers models.Answers) Turn {
	next := nextVisible(c, from, answers)
	if next < 0 {
		return Turn{
			FlowType:       c.FlowType,
			Step:           c.Len(),
			Answers:        answers,
			IsLastQuestion: true,
			Complete:       true,
		}
	}
	return m.turnAt(c, next, answers)
}

// nextVisible returns the index of the first question at or after from whose
// visibility condition holds, or -1.
func nextVisible(c *catalog.Catalog, from int, answers models.Answers) int {
	for i := from; i < c.Len(); i++ {
		if c.Questions[i].VisibleIf.Satisfied(answers) {
			return i
		}
	}
	return -1
}

// reconcile rebuilds the answer map from the client-echoed context. Every
// visible question before step must carry a valid answer unless it is
// optional; the question at step must be visible. Answers to hidden, unknown
// or later questions are dropped.
func reconcile(c *catalog.Catalog, step int, echoed models.Answers) (models.Answers, error) {
	if step < 0 || step >= c.Len() {
		return nil, fmt.Errorf("%w: step %d out of range for %s", models.ErrInvalidFlowState, step, c.FlowType)
	}
	answers := make(models.Answers, step)
	for i := 0; i < step; i++ {
		q := c.Questions[i]
		if !q.VisibleIf.Satisfied(answers) {
			continue
		}
		raw, ok := echoed.Value(q.ID)
		if !ok {
			if q.IsRequired() {
				return nil, fmt.Errorf("%w: question %q before step %d has no answer", models.ErrInvalidFlowState, q.ID, step)
			}
			continue
		}
		v, err := Normalize(q, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: stored answer to %q is invalid: %v", models.ErrInvalidFlowState, q.ID, err)
		}
		if !v.IsEmpty() {
			answers[q.ID] = v
		}
	}
	if !c.Questions[step].VisibleIf.Satisfied(answers) {
		return nil, fmt.Errorf("%w: question %q at step %d is not visible", models.ErrInvalidFlowState, c.Questions[step].ID, step)
	}
	var dropped []string
	for k := range echoed {
		if _, kept := answers[k]; !kept {
			dropped = append(dropped, k)
		}
	}
	if len(dropped) > 0 {
		slog.Debug("flow.reconcile: dropped answers", "flowType", c.FlowType, "step", step, "keys", dropped)
	}
	return answers, nil
}
