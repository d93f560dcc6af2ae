package flow

import (
	"errors"
	"reflect"
	"testing"

	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/models"
)

const testCatalogYAML = `
flow_type: test_flow
questions:
  - id: kind
    type: choice
    prompt: {en: "Kind?"}
    options:
      - {value: a, label: {en: "Option A"}}
      - {value: b, label: {en: "Option B"}}
  - id: only_a
    type: text
    visible_if: {question: kind, in: [a]}
    prompt: {en: "Only for A"}
  - id: amount
    type: currency
    prompt: {en: "How much?"}
  - id: note
    type: text
    required: false
    prompt: {en: "Anything else?"}
  - id: tail_b
    type: multi_choice
    visible_if: {question: kind, in: [b]}
    prompt: {en: "Pick"}
    options: [{value: x}, {value: y}]
`

func testMachine(t *testing.T) *Machine {
	t.Helper()
	reg, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	custom, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("catalog.Parse: %v", err)
	}
	// Hand-built catalogs skip validation, which lets the leading question
	// depend on a later one and so start hidden.
	gated := &catalog.Catalog{
		FlowType: "gated_flow",
		Questions: []catalog.Question{
			{ID: "gate", Type: catalog.TypeText, Prompt: map[string]string{"en": "hidden"}, VisibleIf: &catalog.Condition{Question: "open", In: []string{"x"}}},
			{ID: "open", Type: catalog.TypeText, Prompt: map[string]string{"en": "Open"}},
		},
	}
	hidden := &catalog.Catalog{
		FlowType: "hidden_flow",
		Questions: []catalog.Question{
			{ID: "gate", Type: catalog.TypeText, Prompt: map[string]string{"en": "hidden"}, VisibleIf: &catalog.Condition{Question: "nothing", In: []string{"x"}}},
		},
	}
	all := []*catalog.Catalog{custom, gated, hidden}
	for _, ft := range reg.Types() {
		c, _ := reg.Get(ft)
		all = append(all, c)
	}
	combined, err := catalog.NewRegistry(all...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewMachine(combined)
}

// run drives a flow to completion, answering from values by question id,
// and returns every turn seen.
func run(t *testing.T, m *Machine, ft models.FlowType, values map[string]models.AnswerValue) []Turn {
	t.Helper()
	turn, err := m.Start(ft)
	if err != nil {
		t.Fatalf("Start(%s): %v", ft, err)
	}
	turns := []Turn{turn}
	for !turn.Complete {
		v, ok := values[turn.Question.ID]
		if !ok {
			t.Fatalf("no test value for question %q", turn.Question.ID)
		}
		turn, err = m.Submit(ft, turn.Step, turn.Answers, v)
		if err != nil {
			t.Fatalf("Submit(%s) at %d: %v", ft, turns[len(turns)-1].Step, err)
		}
		turns = append(turns, turn)
		if len(turns) > 100 {
			t.Fatal("flow did not terminate")
		}
	}
	return turns
}

func intakeValues(applicants, location, employment string) map[string]models.AnswerValue {
	return map[string]models.AnswerValue{
		"full_name":            models.Text(" Ana Ruiz "),
		"nationality":          models.Text("Canadian"),
		"passport_number":      models.Text("AB123456"),
		"date_of_birth":        models.Text("1961-04-02"),
		"visa_type":            models.Text("Non-lucrative visa"),
		"applicants":           models.Text(applicants),
		"spouse_name":          models.Text("Luis Ruiz"),
		"dependents":           models.Number(2),
		"application_location": models.Text(location),
		"consulate":            models.Text("Toronto"),
		"employment_status":    models.Text(employment),
		"employer_name":        models.Text("Acme Ltd"),
		"monthly_income":       models.Text("€2.800"),
		"savings":              models.Number(42000),
		"move_date":            models.Text(""),
		"address":              models.Text("1 Main St, Toronto"),
		"email":                models.Text("ana@example.com"),
		"phone":                models.Text(""),
	}
}

func TestStartSkipsHiddenLeadingQuestions(t *testing.T) {
	m := testMachine(t)
	turn, err := m.Start("test_flow")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if turn.Step != 0 || turn.Question.ID != "kind" || turn.Complete || turn.IsLastQuestion {
		t.Errorf("unexpected first turn %+v", turn)
	}

	turn, err = m.Start("gated_flow")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if turn.Step != 1 || turn.Question.ID != "open" {
		t.Errorf("expected first visible question open at 1, got %d %v", turn.Step, turn.Question)
	}
	if !turn.IsLastQuestion {
		t.Error("open is the last question")
	}

	turn, err = m.Start("hidden_flow")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !turn.Complete || turn.Question != nil {
		t.Errorf("a catalog with no visible question starts complete: %+v", turn)
	}
}

func TestStartUnknownFlow(t *testing.T) {
	m := testMachine(t)
	if _, err := m.Start("nope"); !errors.Is(err, models.ErrInvalidFlowState) {
		t.Errorf("expected ErrInvalidFlowState, got %v", err)
	}
}

func TestHiddenQuestionsNeverPresentedOrStored(t *testing.T) {
	m := testMachine(t)
	turns := run(t, m, models.FlowProfileIntake, intakeValues("alone", "spain", "retired"))
	hidden := []string{"spouse_name", "dependents", "consulate", "employer_name"}
	for _, turn := range turns {
		if turn.Question == nil {
			continue
		}
		for _, h := range hidden {
			if turn.Question.ID == h {
				t.Errorf("hidden question %s was presented", h)
			}
		}
	}
	final := turns[len(turns)-1].Answers
	for _, h := range hidden {
		if _, ok := final[h]; ok {
			t.Errorf("hidden question %s stored in final answers", h)
		}
	}
	if _, ok := final["move_date"]; ok {
		t.Error("skipped optional question should not be stored")
	}
	if final.Get("full_name") != "Ana Ruiz" {
		t.Errorf("text should be trimmed, got %q", final.Get("full_name"))
	}
	if final.Get("visa_type") != "non_lucrative" {
		t.Errorf("choice label should normalize to value, got %q", final.Get("visa_type"))
	}
	if v, _ := final.Value("monthly_income"); v.Kind() != models.KindNumber || v.String() != "2800" {
		t.Errorf("currency should normalize to a number, got %v", v)
	}
}

func TestConditionalQuestionsPresentedWhenSatisfied(t *testing.T) {
	m := testMachine(t)
	turns := run(t, m, models.FlowProfileIntake, intakeValues("with_family", "home_country", "remote_employee"))
	final := turns[len(turns)-1].Answers
	for _, id := range []string{"spouse_name", "dependents", "consulate", "employer_name"} {
		if _, ok := final[id]; !ok {
			t.Errorf("expected %s to be asked and stored", id)
		}
	}
	if final.Get("dependents") != "2" {
		t.Errorf("numeric choice should match option value, got %q", final.Get("dependents"))
	}
}

func TestStepStrictlyIncreasesUntilComplete(t *testing.T) {
	m := testMachine(t)
	turns := run(t, m, models.FlowProfileIntake, intakeValues("with_spouse", "spain", "self_employed"))
	for i := 1; i < len(turns); i++ {
		if turns[i].Step <= turns[i-1].Step {
			t.Errorf("step did not increase: %d -> %d", turns[i-1].Step, turns[i].Step)
		}
	}
	last := turns[len(turns)-1]
	if !last.Complete || last.Question != nil {
		t.Errorf("final turn should be complete without a question: %+v", last)
	}
	for _, turn := range turns[:len(turns)-1] {
		if turn.Complete {
			t.Error("only the final turn may be complete")
		}
	}
	if _, err := m.Submit(models.FlowProfileIntake, last.Step, last.Answers, models.Text("more")); !errors.Is(err, models.ErrInvalidFlowState) {
		t.Errorf("submitting past completion should fail with ErrInvalidFlowState, got %v", err)
	}
}

func TestSubmitValidationErrorRepromptsSameStep(t *testing.T) {
	m := testMachine(t)
	start, _ := m.Start("test_flow")
	tests := []struct {
		name  string
		value models.AnswerValue
		want  error
	}{
		{"empty", models.Text("  "), models.ErrMissingAnswer},
		{"unknown option", models.Text("c"), models.ErrInvalidAnswerType},
		{"list for choice", models.List("a", "b"), models.ErrInvalidAnswerType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn, err := m.Submit("test_flow", start.Step, models.Answers{}, tt.value)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !models.IsRetryable(err) {
				t.Error("validation errors must be retryable")
			}
			if turn.Step != start.Step || turn.Question == nil || turn.Question.ID != "kind" {
				t.Errorf("expected the same question again, got %+v", turn)
			}
		})
	}

	turn, _ := m.Submit("test_flow", start.Step, nil, models.Text("option a"))
	if turn.Question.ID != "only_a" {
		t.Fatalf("expected only_a, got %s", turn.Question.ID)
	}
	turn, _ = m.Submit("test_flow", turn.Step, turn.Answers, models.Text("detail"))
	again, err := m.Submit("test_flow", turn.Step, turn.Answers, models.Text("-40"))
	if !errors.Is(err, models.ErrInvalidAnswerType) {
		t.Fatalf("negative amount should be invalid, got %v", err)
	}
	if !reflect.DeepEqual(again.Answers, turn.Answers) {
		t.Errorf("rejected answer must not change the answer map: %v vs %v", again.Answers, turn.Answers)
	}
}

func TestSubmitRejectsInconsistentContext(t *testing.T) {
	m := testMachine(t)
	tests := []struct {
		name    string
		step    int
		answers models.Answers
	}{
		{"negative step", -1, nil},
		{"step out of range", 42, nil},
		{"hidden step", 1, models.Answers{"kind": models.Text("b")}},
		{"missing earlier answer", 2, models.Answers{}},
		{"missing conditional answer", 2, models.Answers{"kind": models.Text("a")}},
		{"tampered earlier answer", 2, models.Answers{"kind": models.Text("z")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Submit("test_flow", tt.step, tt.answers, models.Text("x"))
			if !errors.Is(err, models.ErrInvalidFlowState) {
				t.Errorf("expected ErrInvalidFlowState, got %v", err)
			}
			if models.IsRetryable(err) {
				t.Error("invalid flow state is not retryable")
			}
		})
	}
}

func TestSubmitDropsUnknownHiddenAndLaterAnswers(t *testing.T) {
	m := testMachine(t)
	echoed := models.Answers{
		"kind":    models.Text("b"),
		"only_a":  models.Text("should vanish"),
		"bogus":   models.Text("x"),
		"note":    models.Text("later"),
		"tail_b":  models.List("x"),
		"amount":  models.Number(1),
		"unknown": models.List("q"),
	}
	turn, err := m.Submit("test_flow", 2, echoed, models.Number(10))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := models.Answers{"kind": models.Text("b"), "amount": models.Number(10)}
	if !reflect.DeepEqual(turn.Answers, want) {
		t.Errorf("expected %v, got %v", want, turn.Answers)
	}
	if turn.Question.ID != "note" {
		t.Errorf("expected note next, got %s", turn.Question.ID)
	}
}

func TestSubmitReplayIsIdempotent(t *testing.T) {
	m := testMachine(t)
	ctx := models.Answers{"kind": models.Text("a"), "only_a": models.Text("x")}
	first, err1 := m.Submit("test_flow", 2, ctx, models.Text("1.200"))
	second, err2 := m.Submit("test_flow", 2, ctx, models.Text("1.200"))
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors %v %v", err1, err2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("replay produced a different turn: %+v vs %+v", first, second)
	}
}

func TestIsLastQuestion(t *testing.T) {
	m := testMachine(t)
	base := models.Answers{"kind": models.Text("a"), "only_a": models.Text("x"), "amount": models.Number(5)}
	last, err := m.IsLastQuestion("test_flow", 3, base)
	if err != nil {
		t.Fatalf("IsLastQuestion: %v", err)
	}
	if !last {
		t.Error("note is last when tail_b is hidden")
	}
	withB := models.Answers{"kind": models.Text("b"), "amount": models.Number(5)}
	last, _ = m.IsLastQuestion("test_flow", 3, withB)
	if last {
		t.Error("tail_b follows note when kind is b")
	}
	last, _ = m.IsLastQuestion("test_flow", 0, nil)
	if last {
		t.Error("the first question is not last")
	}
	if _, err := m.IsLastQuestion("test_flow", 99, nil); !errors.Is(err, models.ErrInvalidFlowState) {
		t.Errorf("expected ErrInvalidFlowState, got %v", err)
	}
	last, err = m.IsLastQuestion("test_flow", 5, base)
	if err != nil || !last {
		t.Errorf("terminal step should report last: %v %v", last, err)
	}

	turn, _ := m.Submit("test_flow", 2, base, models.Number(5))
	if turn.Question.ID != "note" || !turn.IsLastQuestion {
		t.Errorf("turn should flag the last question: %+v", turn)
	}
	done, err := m.Submit("test_flow", turn.Step, turn.Answers, models.Text(""))
	if err != nil || !done.Complete {
		t.Errorf("skipping the optional last question should complete: %+v %v", done, err)
	}
}

func TestApostilleCommaSelectionNormalizedToList(t *testing.T) {
	m := testMachine(t)
	turn, err := m.Start(models.FlowApostilleGuide)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if turn.Question.ID != "documents_needed" {
		t.Fatalf("unexpected first question %s", turn.Question.ID)
	}
	turn, err = m.Submit(models.FlowApostilleGuide, turn.Step, nil, models.Text("birth_cert, marriage_cert"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	v, ok := turn.Answers.Value("documents_needed")
	if !ok || v.Kind() != models.KindList {
		t.Fatalf("expected a list, got %v", v)
	}
	if !reflect.DeepEqual(v.Items(), []string{"birth_cert", "marriage_cert"}) {
		t.Errorf("unexpected items %v", v.Items())
	}
}

func TestNormalizeMultiChoice(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"birth_cert, marriage_cert", []string{"birth_cert", "marriage_cert"}},
		{" a ,, b , a ", []string{"a", "b"}},
		{"", nil},
		{"single", []string{"single"}},
	}
	for _, tt := range tests {
		if got := NormalizeMultiChoice(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NormalizeMultiChoice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMultiChoiceByLabelAndDedup(t *testing.T) {
	q := catalog.Question{
		ID:   "docs",
		Type: catalog.TypeMultiChoice,
		Options: []catalog.Option{
			{Value: "birth_cert", Label: map[string]string{"en": "Birth certificate"}},
			{Value: "degree", Label: map[string]string{"en": "University degree"}},
		},
	}
	v, err := Normalize(q, models.List("Birth certificate", "degree, birth_cert"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !reflect.DeepEqual(v.Items(), []string{"birth_cert", "degree"}) {
		t.Errorf("unexpected items %v", v.Items())
	}
	if _, err := Normalize(q, models.Text("birth_cert, passport")); !errors.Is(err, models.ErrInvalidAnswerType) {
		t.Errorf("unknown entry should be invalid, got %v", err)
	}
	if _, err := Normalize(q, models.Text(" , ")); !errors.Is(err, models.ErrMissingAnswer) {
		t.Errorf("separator-only input should be missing, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	m := testMachine(t)
	got, err := m.Sanitize("test_flow", models.Answers{
		"kind":    models.Text("OPTION B"),
		"only_a":  models.Text("hidden when b"),
		"amount":  models.Text("€1.500"),
		"tail_b":  models.Text("y, x, y"),
		"unknown": models.Text("dropped"),
	})
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	want := models.Answers{
		"kind":   models.Text("b"),
		"amount": models.Number(1500),
		"tail_b": models.List("y", "x"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize = %v, want %v", got, want)
	}

	got, err = m.Sanitize("test_flow", models.Answers{"note": models.Text(" later ")})
	if err != nil {
		t.Fatalf("Sanitize with unanswered questions: %v", err)
	}
	if len(got) != 1 || got.Get("note") != "later" {
		t.Errorf("unanswered questions should be left out: %v", got)
	}

	if _, err := m.Sanitize("test_flow", models.Answers{"kind": models.Text("c")}); !errors.Is(err, models.ErrInvalidAnswerType) {
		t.Errorf("expected ErrInvalidAnswerType, got %v", err)
	}
	if _, err := m.Sanitize("no_such_flow", nil); !errors.Is(err, models.ErrInvalidFlowState) {
		t.Errorf("expected ErrInvalidFlowState, got %v", err)
	}
}

func TestSanitizeCoverLetterPrivacyLabel(t *testing.T) {
	m := testMachine(t)
	for _, label := range []string{"Use placeholders", "PLACEHOLDERS", "usar marcadores"} {
		got, err := m.Sanitize(models.FlowCoverLetter, models.Answers{models.AnswerPrivacyChoice: models.Text(label)})
		if err != nil {
			t.Fatalf("Sanitize(%q): %v", label, err)
		}
		if got.Get(models.AnswerPrivacyChoice) != models.PrivacyPlaceholders {
			t.Errorf("Sanitize(%q) privacy = %q", label, got.Get(models.AnswerPrivacyChoice))
		}
	}
}
