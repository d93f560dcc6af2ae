// Package catalog defines the static question catalogs that drive every
// DossierPipe flow.
//
// Catalogs are YAML documents embedded in the binary (or loaded from an
// fs.FS). Each one lists the questions of a single flow type in the order
// they are asked, with optional visibility conditions referencing earlier
// answers.
package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var embedded embed.FS

// QuestionType defines how an answer is collected and validated.
type QuestionType string

const (
	TypeChoice      QuestionType = "choice"
	TypeMultiChoice QuestionType = "multi_choice"
	TypeText        QuestionType = "text"
	TypeCurrency    QuestionType = "currency"
)

// IsValid reports whether t is a supported question type.
func (t QuestionType) IsValid() bool {
	switch t {
	case TypeChoice, TypeMultiChoice, TypeText, TypeCurrency:
		return true
	default:
		return false
	}
}

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == TypeChoice || t == TypeMultiChoice
}

// Option is one selectable value of a choice question.
type Option struct {
	Value    string            `yaml:"value" json:"value"`
	Label    map[string]string `yaml:"label" json:"label"`
	LeadTime *Duration         `yaml:"lead_time,omitempty" json:"lead_time,omitempty"`
}

// LabelFor returns the option label in lang, falling back to English and
// then to the raw value.
func (o Option) LabelFor(lang string) string {
	return localized(o.Label, lang, o.Value)
}

// Condition gates a question on an earlier answer.
type Condition struct {
	Question string   `yaml:"question" json:"question"`
	In       []string `yaml:"in" json:"in"`
}

// Satisfied reports whether answers hold an accepted value for the
// referenced question.
func (c *Condition) Satisfied(answers models.Answers) bool {
	if c == nil {
		return true
	}
	v, ok := answers.Value(c.Question)
	if !ok {
		return false
	}
	return v.Matches(c.In)
}

// Question is the static definition of one step of a flow.
type Question struct {
	ID          string            `yaml:"id" json:"id"`
	Prompt      map[string]string `yaml:"prompt" json:"prompt"`
	Type        QuestionType      `yaml:"type" json:"type"`
	Options     []Option          `yaml:"options,omitempty" json:"options,omitempty"`
	Placeholder string            `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Required    *bool             `yaml:"required,omitempty" json:"required,omitempty"`
	VisibleIf   *Condition        `yaml:"visible_if,omitempty" json:"visible_if,omitempty"`
}

// IsRequired reports whether an empty answer is rejected. Questions are
// required unless the catalog says otherwise.
func (q Question) IsRequired() bool {
	return q.Required == nil || *q.Required
}

// PromptFor returns the prompt text in lang, falling back to English.
func (q Question) PromptFor(lang string) string {
	return localized(q.Prompt, lang, q.ID)
}

// Option returns the option with the given value.
func (q Question) Option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// MatchOption resolves free user input to an option, first by value and
// then by any label, ignoring case and surrounding space.
func (q Question) MatchOption(input string) (Option, bool) {
	s := strings.TrimSpace(input)
	if o, ok := q.Option(s); ok {
		return o, true
	}
	for _, o := range q.Options {
		if strings.EqualFold(o.Value, s) {
			return o, true
		}
		for _, label := range o.Label {
			if strings.EqualFold(strings.TrimSpace(label), s) {
				return o, true
			}
		}
	}
	return Option{}, false
}

// Catalog is the ordered question list of one flow type.
type Catalog struct {
	FlowType  models.FlowType   `yaml:"flow_type" json:"flow_type"`
	Version   int               `yaml:"version" json:"version"`
	Title     map[string]string `yaml:"title" json:"title"`
	Questions []Question        `yaml:"questions" json:"questions"`

	index map[string]int
}

// Len returns the number of questions in the catalog.
func (c *Catalog) Len() int { return len(c.Questions) }

// At returns the question at position i.
func (c *Catalog) At(i int) (Question, bool) {
	if i < 0 || i >= len(c.Questions) {
		return Question{}, false
	}
	return c.Questions[i], true
}

// IndexOf returns the position of the question with the given id.
func (c *Catalog) IndexOf(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Lookup returns the question with the given id.
func (c *Catalog) Lookup(id string) (Question, bool) {
	i, ok := c.index[id]
	if !ok {
		return Question{}, false
	}
	return c.Questions[i], true
}

// TitleFor returns the catalog title in lang.
func (c *Catalog) TitleFor(lang string) string {
	return localized(c.Title, lang, string(c.FlowType))
}

// Validate checks ids, types, options and that every visibility condition
// references an earlier question.
func (c *Catalog) Validate() error {
	if c.FlowType == "" {
		return fmt.Errorf("catalog: flow_type is required")
	}
	if len(c.Questions) == 0 {
		return fmt.Errorf("catalog %s: no questions", c.FlowType)
	}
	seen := make(map[string]int, len(c.Questions))
	for i, q := range c.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("catalog %s: question %d has no id", c.FlowType, i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("catalog %s: duplicate question id %q", c.FlowType, q.ID)
		}
		if !q.Type.IsValid() {
			return fmt.Errorf("catalog %s: question %q has invalid type %q", c.FlowType, q.ID, q.Type)
		}
		if q.Prompt["en"] == "" {
			return fmt.Errorf("catalog %s: question %q has no English prompt", c.FlowType, q.ID)
		}
		if q.Type.HasOptions() && len(q.Options) == 0 {
			return fmt.Errorf("catalog %s: question %q needs options", c.FlowType, q.ID)
		}
		if !q.Type.HasOptions() && len(q.Options) > 0 {
			return fmt.Errorf("catalog %s: question %q of type %s cannot have options", c.FlowType, q.ID, q.Type)
		}
		values := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			if o.Value == "" || strings.Contains(o.Value, ",") {
				return fmt.Errorf("catalog %s: question %q has invalid option value %q", c.FlowType, q.ID, o.Value)
			}
			if values[o.Value] {
				return fmt.Errorf("catalog %s: question %q repeats option %q", c.FlowType, q.ID, o.Value)
			}
			values[o.Value] = true
			if o.LeadTime != nil {
				if err := o.LeadTime.Validate(); err != nil {
					return fmt.Errorf("catalog %s: question %q option %q: %w", c.FlowType, q.ID, o.Value, err)
				}
			}
		}
		if q.VisibleIf != nil {
			ref, ok := seen[q.VisibleIf.Question]
			if !ok {
				return fmt.Errorf("catalog %s: question %q depends on %q which is not an earlier question", c.FlowType, q.ID, q.VisibleIf.Question)
			}
			if len(q.VisibleIf.In) == 0 {
				return fmt.Errorf("catalog %s: question %q has an empty visibility set", c.FlowType, q.ID)
			}
			refQ := c.Questions[ref]
			if refQ.Type.HasOptions() {
				for _, v := range q.VisibleIf.In {
					if _, ok := refQ.Option(v); !ok {
						return fmt.Errorf("catalog %s: question %q accepts unknown value %q of %q", c.FlowType, q.ID, v, refQ.ID)
					}
				}
			}
		}
		seen[q.ID] = i
	}
	return nil
}

func (c *Catalog) buildIndex() {
	c.index = make(map[string]int, len(c.Questions))
	for i, q := range c.Questions {
		c.index[q.ID] = i
	}
}

// Parse decodes and validates a single catalog document.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog: payload is empty")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.buildIndex()
	return &c, nil
}

// Registry holds the catalogs of every known flow type. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	catalogs map[models.FlowType]*Catalog
}

// NewRegistry builds a registry from already parsed catalogs.
func NewRegistry(catalogs ...*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[models.FlowType]*Catalog, len(catalogs))}
	for _, c := range catalogs {
		if c == nil {
			continue
		}
		if _, dup := r.catalogs[c.FlowType]; dup {
			return nil, fmt.Errorf("catalog: duplicate flow type %q", c.FlowType)
		}
		if c.index == nil {
			c.buildIndex()
		}
		r.catalogs[c.FlowType] = c
	}
	return r, nil
}

// LoadFS parses every *.yaml file in dir of fsys.
func LoadFS(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", dir, err)
	}
	var catalogs []*Catalog
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		p := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", p, err)
		}
		c, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", p, err)
		}
		catalogs = append(catalogs, c)
	}
	slog.Debug("catalog.LoadFS: catalogs parsed", "dir", dir, "count", len(catalogs))
	return NewRegistry(catalogs...)
}

// Default returns a registry of the catalogs embedded in the binary.
func Default() (*Registry, error) {
	return LoadFS(embedded, "catalogs")
}

// Get returns the catalog for flowType.
func (r *Registry) Get(flowType models.FlowType) (*Catalog, bool) {
	c, ok := r.catalogs[flowType]
	return c, ok
}

// Types returns the registered flow types in lexical order.
func (r *Registry) Types() []models.FlowType {
	out := make([]models.FlowType, 0, len(r.catalogs))
	for ft := range r.catalogs {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func localized(m map[string]string, lang, fallback string) string {
	if s := m[lang]; s != "" {
		return s
	}
	if s := m["en"]; s != "" {
		return s
	}
	return fallback
}
