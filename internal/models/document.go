package models

import "time"

// SectionKind identifies how a document section is laid out.
type SectionKind string

const (
	SectionHeader    SectionKind = "header"
	SectionParagraph SectionKind = "paragraph"
	SectionTable     SectionKind = "table"
	SectionChecklist SectionKind = "checklist"
)

// ItemStatus classifies a checklist item or a verified field.
type ItemStatus string

const (
	StatusOK      ItemStatus = "ok"
	StatusWarning ItemStatus = "warning"
	StatusFail    ItemStatus = "fail"
	StatusUnclear ItemStatus = "unclear"
)

// ChecklistItem is one line of a checklist section.
type ChecklistItem struct {
	Label  string     `json:"label"`
	Detail string     `json:"detail,omitempty"`
	Status ItemStatus `json:"status,omitempty"`
}

// Section is one block of a document description.
type Section struct {
	Kind    SectionKind     `json:"type"`
	Heading string          `json:"heading,omitempty"`
	Text    string          `json:"text,omitempty"`
	Columns []string        `json:"columns,omitempty"`
	Rows    [][]string      `json:"rows,omitempty"`
	Items   []ChecklistItem `json:"items,omitempty"`
}

// DocumentDescription is the structured output of template assembly.
// GeneratedAt is the only field that depends on the clock.
type DocumentDescription struct {
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Language    string    `json:"language"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// Paragraphs returns the text of every paragraph section in order.
func (d *DocumentDescription) Paragraphs() []string {
	var out []string
	for _, s := range d.Sections {
		if s.Kind == SectionParagraph {
			out = append(out, s.Text)
		}
	}
	return out
}

// StoredDocument is a persisted document description.
type StoredDocument struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Type        string              `json:"type"`
	Description DocumentDescription `json:"description"`
	CreatedAt   time.Time           `json:"created_at"`
}
