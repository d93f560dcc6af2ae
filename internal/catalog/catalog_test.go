package catalog

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/BTreeMap/DossierPipe/internal/models"
)

func TestDefaultRegistryLoadsEveryFlow(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	want := []models.FlowType{
		models.FlowProfileIntake,
		models.FlowCoverLetter,
		models.FlowFinancialStatement,
		models.FlowNonWorkAttestation,
		models.FlowApostilleGuide,
		models.FlowRelocationGuide,
		models.FlowHealthInsuranceVerification,
	}
	for _, ft := range want {
		c, ok := reg.Get(ft)
		if !ok {
			t.Errorf("expected catalog for %s", ft)
			continue
		}
		for _, q := range c.Questions {
			if q.Prompt["es"] == "" {
				t.Errorf("%s/%s: missing Spanish prompt", ft, q.ID)
			}
		}
	}
	if len(reg.Types()) != len(want) {
		t.Errorf("expected %d types, got %v", len(want), reg.Types())
	}
}

func TestApostilleOptionsCarryLeadTimes(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	c, _ := reg.Get(models.FlowApostilleGuide)
	q, ok := c.Lookup("documents_needed")
	if !ok {
		t.Fatal("documents_needed missing")
	}
	for _, o := range q.Options {
		if o.LeadTime == nil {
			t.Errorf("option %s has no lead time", o.Value)
		}
	}
	o, _ := q.Option("criminal_record")
	if o.LeadTime.String() != "8-12 weeks" {
		t.Errorf("unexpected lead time %q", o.LeadTime.String())
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty",
			yaml: "",
			want: "empty",
		},
		{
			name: "duplicate id",
			yaml: `
flow_type: x
questions:
  - {id: a, type: text, prompt: {en: A}}
  - {id: a, type: text, prompt: {en: B}}
`,
			want: "duplicate question id",
		},
		{
			name: "forward reference",
			yaml: `
flow_type: x
questions:
  - {id: a, type: text, prompt: {en: A}, visible_if: {question: b, in: ["yes"]}}
  - {id: b, type: choice, prompt: {en: B}, options: [{value: "yes"}]}
`,
			want: "not an earlier question",
		},
		{
			name: "unknown accepted value",
			yaml: `
flow_type: x
questions:
  - {id: a, type: choice, prompt: {en: A}, options: [{value: "yes"}]}
  - {id: b, type: text, prompt: {en: B}, visible_if: {question: a, in: ["maybe"]}}
`,
			want: "unknown value",
		},
		{
			name: "choice without options",
			yaml: `
flow_type: x
questions:
  - {id: a, type: choice, prompt: {en: A}}
`,
			want: "needs options",
		},
		{
			name: "comma in option value",
			yaml: `
flow_type: x
questions:
  - {id: a, type: multi_choice, prompt: {en: A}, options: [{value: "a,b"}]}
`,
			want: "invalid option value",
		},
		{
			name: "bad lead time",
			yaml: `
flow_type: x
questions:
  - id: a
    type: multi_choice
    prompt: {en: A}
    options: [{value: b, lead_time: {min: 4, max: 2, unit: weeks}}]
`,
			want: "invalid range",
		},
		{
			name: "unknown type",
			yaml: `
flow_type: x
questions:
  - {id: a, type: date, prompt: {en: A}}
`,
			want: "invalid type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestMatchOption(t *testing.T) {
	q := Question{
		ID:   "applicants",
		Type: TypeChoice,
		Options: []Option{
			{Value: "alone", Label: map[string]string{"en": "Just me", "es": "Solo yo"}},
			{Value: "with_spouse", Label: map[string]string{"en": "Me and my spouse"}},
		},
	}
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"alone", "alone", true},
		{"  ALONE ", "alone", true},
		{"just me", "alone", true},
		{"Solo yo", "alone", true},
		{"with_spouse", "with_spouse", true},
		{"nobody", "", false},
	}
	for _, tt := range tests {
		o, ok := q.MatchOption(tt.input)
		if ok != tt.ok || o.Value != tt.want {
			t.Errorf("MatchOption(%q) = %q, %v; want %q, %v", tt.input, o.Value, ok, tt.want, tt.ok)
		}
	}
}

func TestConditionSatisfied(t *testing.T) {
	c := &Condition{Question: "applicants", In: []string{"with_spouse", "with_family"}}
	if c.Satisfied(models.Answers{}) {
		t.Error("an unanswered question satisfies no condition")
	}
	if c.Satisfied(models.Answers{"applicants": models.Text("alone")}) {
		t.Error("alone should not satisfy the condition")
	}
	if !c.Satisfied(models.Answers{"applicants": models.Text("with_family")}) {
		t.Error("with_family should satisfy the condition")
	}
	var none *Condition
	if !none.Satisfied(nil) {
		t.Error("a nil condition is always satisfied")
	}
}

func TestLoadFSAndLocalizedFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"c/one.yaml": {Data: []byte(`
flow_type: one
title: {en: One}
questions:
  - {id: a, type: text, prompt: {en: Hello}}
`)},
		"c/readme.md": {Data: []byte("ignored")},
	}
	reg, err := LoadFS(fsys, "c")
	if err != nil {
		t.Fatalf("LoadFS error: %v", err)
	}
	c, ok := reg.Get("one")
	if !ok {
		t.Fatal("expected catalog one")
	}
	q, _ := c.At(0)
	if q.PromptFor("es") != "Hello" {
		t.Errorf("expected English fallback, got %q", q.PromptFor("es"))
	}
	if !q.IsRequired() {
		t.Error("questions are required by default")
	}
	if c.TitleFor("es") != "One" {
		t.Errorf("unexpected title %q", c.TitleFor("es"))
	}
	if _, ok := c.At(1); ok {
		t.Error("At out of range should report false")
	}
}

func TestDurationOrdering(t *testing.T) {
	long := Duration{Min: 8, Max: 12, Unit: UnitWeeks}
	short := Duration{Min: 2, Max: 4, Unit: UnitWeeks}
	month := Duration{Min: 1, Max: 3, Unit: UnitMonths}
	if !long.Less(short) {
		t.Error("longer lead time should sort first")
	}
	if !month.Less(long) {
		t.Error("a 3 month upper bound outranks 12 weeks")
	}
	tie := Duration{Min: 4, Max: 12, Unit: UnitWeeks}
	if !long.Less(tie) || tie.Less(long) {
		t.Error("equal upper bounds should fall back to the lower bound")
	}
	if short.String() != "2-4 weeks" || (Duration{Min: 3, Max: 3, Unit: UnitDays}).String() != "3 days" {
		t.Errorf("unexpected rendering %q", short.String())
	}
}
