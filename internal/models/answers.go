package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies which variant an AnswerValue holds.
type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindText
	KindList
	KindNumber
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// AnswerValue is one user-supplied answer: a string, a list of strings or a number.
// The zero value is empty.
type AnswerValue struct {
	kind ValueKind
	text string
	list []string
	num  float64
}

// Text returns a text answer value.
func Text(s string) AnswerValue {
	return AnswerValue{kind: KindText, text: s}
}

// List returns a list answer value. The items are copied.
func List(items ...string) AnswerValue {
	cp := make([]string, len(items))
	copy(cp, items)
	return AnswerValue{kind: KindList, list: cp}
}

// Number returns a numeric answer value.
func Number(n float64) AnswerValue {
	return AnswerValue{kind: KindNumber, num: n}
}

// Kind returns the variant held by v.
func (v AnswerValue) Kind() ValueKind { return v.kind }

// IsEmpty reports whether v carries no usable content.
func (v AnswerValue) IsEmpty() bool {
	switch v.kind {
	case KindText:
		return strings.TrimSpace(v.text) == ""
	case KindList:
		return len(v.list) == 0
	case KindNumber:
		return false
	default:
		return true
	}
}

// String renders v as display text. Lists are joined with ", ".
func (v AnswerValue) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		return strings.Join(v.list, ", ")
	case KindNumber:
		return FormatNumber(v.num)
	default:
		return ""
	}
}

// Items returns the list entries of v. A non-empty text value is returned as
// a single-entry list.
func (v AnswerValue) Items() []string {
	switch v.kind {
	case KindList:
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	case KindText:
		if strings.TrimSpace(v.text) == "" {
			return nil
		}
		return []string{v.text}
	case KindNumber:
		return []string{FormatNumber(v.num)}
	default:
		return nil
	}
}

// Float returns the numeric content of v, parsing text as an amount when needed.
func (v AnswerValue) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		n, err := ParseAmount(v.text)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Matches reports whether any rendering of v equals one of accepted.
// Text compares directly, lists match on any entry and numbers on their
// shortest decimal form.
func (v AnswerValue) Matches(accepted []string) bool {
	for _, candidate := range v.Items() {
		for _, a := range accepted {
			if candidate == a {
				return true
			}
		}
	}
	return false
}

// MarshalJSON encodes v as the natural JSON scalar or array.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes strings, arrays, numbers, booleans and null.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = AnswerValue{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '[':
		var raw []interface{}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			switch x := item.(type) {
			case string:
				items = append(items, x)
			case float64:
				items = append(items, FormatNumber(x))
			case nil:
			default:
				items = append(items, fmt.Sprint(x))
			}
		}
		*v = List(items...)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = Text(strconv.FormatBool(b))
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("answer value: %w", err)
		}
		*v = Number(n)
	}
	return nil
}

// FormatNumber renders n in its shortest decimal form without exponent.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Answers is the Answer Store of one flow instance: question id to value.
type Answers map[string]AnswerValue

// Clone returns an independent copy of a.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Value returns the answer for key and whether it is present and non-empty.
func (a Answers) Value(key string) (AnswerValue, bool) {
	v, ok := a[key]
	if !ok || v.IsEmpty() {
		return AnswerValue{}, false
	}
	return v, true
}

// Get returns the display text of the answer for key, or "".
func (a Answers) Get(key string) string {
	v, ok := a.Value(key)
	if !ok {
		return ""
	}
	return v.String()
}
