package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/BTreeMap/DossierPipe/internal/store"
	"github.com/BTreeMap/DossierPipe/internal/util"
)

// SessionManager runs the state machine for a member and persists the
// running answer map through a Store. State is written only after an answer
// passes validation.
type SessionManager struct {
	machine *Machine
	store   store.Store
	now     func() time.Time
}

// NewSessionManager creates a SessionManager backed by a Store.
func NewSessionManager(machine *Machine, st store.Store) *SessionManager {
	slog.Debug("Creating SessionManager")
	return &SessionManager{machine: machine, store: st, now: time.Now}
}

// Machine returns the underlying state machine.
func (sm *SessionManager) Machine() *Machine {
	return sm.machine
}

// Start discards any previous instance of the flow and persists a fresh one.
func (sm *SessionManager) Start(ctx context.Context, userID string, flowType models.FlowType) (Turn, error) {
	slog.Debug("SessionManager Start", "userID", userID, "flowType", flowType)
	turn, err := sm.machine.Start(flowType)
	if err != nil {
		return Turn{}, err
	}
	now := sm.now()
	state := models.FlowState{
		UserID:     userID,
		FlowType:   flowType,
		InstanceID: util.GenerateFlowInstanceID(),
		Step:       turn.Step,
		Answers:    turn.Answers,
		Complete:   turn.Complete,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := sm.store.SaveFlowState(ctx, state); err != nil {
		slog.Error("SessionManager Start save error", "error", err, "userID", userID, "flowType", flowType)
		return Turn{}, err
	}
	slog.Info("SessionManager Start succeeded", "userID", userID, "flowType", flowType, "instanceID", state.InstanceID)
	return turn, nil
}

// Submit answers the question at step. When answers is nil the persisted
// answer map is used as the context. Validation errors return the re-asked
// turn and leave the persisted state untouched.
func (sm *SessionManager) Submit(ctx context.Context, userID string, flowType models.FlowType, step int, answers models.Answers, value models.AnswerValue) (Turn, error) {
	slog.Debug("SessionManager Submit", "userID", userID, "flowType", flowType, "step", step)
	state, err := sm.store.GetFlowState(ctx, userID, flowType)
	if err != nil {
		slog.Error("SessionManager Submit get error", "error", err, "userID", userID, "flowType", flowType)
		return Turn{}, err
	}
	if answers == nil && state != nil {
		answers = state.Answers
	}

	turn, err := sm.machine.Submit(flowType, step, answers, value)
	if err != nil {
		return turn, err
	}

	now := sm.now()
	if state == nil {
		state = &models.FlowState{
			UserID:     userID,
			FlowType:   flowType,
			InstanceID: util.GenerateFlowInstanceID(),
			CreatedAt:  now,
		}
	}
	state.Step = turn.Step
	state.Answers = turn.Answers
	state.Complete = turn.Complete
	state.UpdatedAt = now
	if err := sm.store.SaveFlowState(ctx, *state); err != nil {
		slog.Error("SessionManager Submit save error", "error", err, "userID", userID, "flowType", flowType)
		return Turn{}, err
	}

	if turn.Complete && flowType == models.FlowProfileIntake {
		if err := sm.mergeProfile(ctx, userID, turn.Answers); err != nil {
			return Turn{}, err
		}
	}
	slog.Debug("SessionManager Submit succeeded", "userID", userID, "flowType", flowType, "step", turn.Step, "complete", turn.Complete)
	return turn, nil
}

// IsLastQuestion reports whether step is the last visible question. When
// answers is nil the persisted answer map is used.
func (sm *SessionManager) IsLastQuestion(ctx context.Context, userID string, flowType models.FlowType, step int, answers models.Answers) (bool, error) {
	if answers == nil {
		state, err := sm.store.GetFlowState(ctx, userID, flowType)
		if err != nil {
			return false, err
		}
		if state != nil {
			answers = state.Answers
		}
	}
	return sm.machine.IsLastQuestion(flowType, step, answers)
}

// Current returns the persisted state of the member's flow.
func (sm *SessionManager) Current(ctx context.Context, userID string, flowType models.FlowType) (*models.FlowState, error) {
	state, err := sm.store.GetFlowState(ctx, userID, flowType)
	if err != nil {
		slog.Error("SessionManager Current error", "error", err, "userID", userID, "flowType", flowType)
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("flow %s for %s: %w", flowType, userID, models.ErrNotFound)
	}
	return state, nil
}

// Reset removes the persisted state of the member's flow.
func (sm *SessionManager) Reset(ctx context.Context, userID string, flowType models.FlowType) error {
	if err := sm.store.DeleteFlowState(ctx, userID, flowType); err != nil {
		slog.Error("SessionManager Reset error", "error", err, "userID", userID, "flowType", flowType)
		return err
	}
	slog.Info("SessionManager Reset succeeded", "userID", userID, "flowType", flowType)
	return nil
}

func (sm *SessionManager) mergeProfile(ctx context.Context, userID string, answers models.Answers) error {
	profile, err := sm.store.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	merged := profile.Merge(answers)
	if err := sm.store.SaveProfile(ctx, userID, merged); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	slog.Info("SessionManager profile updated from intake", "userID", userID, "fields", len(answers))
	return nil
}
