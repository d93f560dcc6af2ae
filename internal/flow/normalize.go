package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/models"
)

// NormalizeMultiChoice splits a comma-joined selection as sent by chat
// transports into its trimmed, non-empty entries, keeping the first
// occurrence of each.
func NormalizeMultiChoice(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// Normalize validates value against the question and returns the canonical
// form that is stored in the answer map. An empty value is accepted for
// optional questions and returned as the zero AnswerValue.
func Normalize(q catalog.Question, value models.AnswerValue) (models.AnswerValue, error) {
	if value.IsEmpty() {
		if q.IsRequired() {
			return models.AnswerValue{}, fmt.Errorf("%w: %s", models.ErrMissingAnswer, q.ID)
		}
		return models.AnswerValue{}, nil
	}
	switch q.Type {
	case catalog.TypeChoice:
		return normalizeChoice(q, value)
	case catalog.TypeMultiChoice:
		return normalizeMultiChoice(q, value)
	case catalog.TypeText:
		if value.Kind() == models.KindList {
			return models.AnswerValue{}, fmt.Errorf("%w: %s expects text", models.ErrInvalidAnswerType, q.ID)
		}
		return models.Text(strings.TrimSpace(value.String())), nil
	case catalog.TypeCurrency:
		return normalizeCurrency(q, value)
	default:
		return models.AnswerValue{}, fmt.Errorf("%w: %s has unsupported type %s", models.ErrInvalidFlowState, q.ID, q.Type)
	}
}

func normalizeChoice(q catalog.Question, value models.AnswerValue) (models.AnswerValue, error) {
	items := value.Items()
	if len(items) != 1 {
		return models.AnswerValue{}, fmt.Errorf("%w: %s expects a single choice", models.ErrInvalidAnswerType, q.ID)
	}
	o, ok := q.MatchOption(items[0])
	if !ok {
		return models.AnswerValue{}, fmt.Errorf("%w: %q is not an option of %s", models.ErrInvalidAnswerType, items[0], q.ID)
	}
	return models.Text(o.Value), nil
}

func normalizeMultiChoice(q catalog.Question, value models.AnswerValue) (models.AnswerValue, error) {
	var entries []string
	if value.Kind() == models.KindList {
		for _, item := range value.Items() {
			entries = append(entries, NormalizeMultiChoice(item)...)
		}
	} else {
		entries = NormalizeMultiChoice(value.String())
	}
	selected := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		o, ok := q.MatchOption(e)
		if !ok {
			return models.AnswerValue{}, fmt.Errorf("%w: %q is not an option of %s", models.ErrInvalidAnswerType, e, q.ID)
		}
		if seen[o.Value] {
			continue
		}
		seen[o.Value] = true
		selected = append(selected, o.Value)
	}
	if len(selected) == 0 {
		if q.IsRequired() {
			return models.AnswerValue{}, fmt.Errorf("%w: %s", models.ErrMissingAnswer, q.ID)
		}
		return models.AnswerValue{}, nil
	}
	return models.List(selected...), nil
}

func normalizeCurrency(q catalog.Question, value models.AnswerValue) (models.AnswerValue, error) {
	if value.Kind() == models.KindList {
		return models.AnswerValue{}, fmt.Errorf("%w: %s expects an amount", models.ErrInvalidAnswerType, q.ID)
	}
	n, ok := value.Float()
	if !ok {
		return models.AnswerValue{}, fmt.Errorf("%w: %q is not an amount", models.ErrInvalidAnswerType, value.String())
	}
	if n < 0 {
		return models.AnswerValue{}, fmt.Errorf("%w: %s cannot be negative", models.ErrInvalidAnswerType, q.ID)
	}
	return models.Number(n), nil
}
