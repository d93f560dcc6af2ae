// Package assemble turns a completed answer map and a member profile into a
// structured document description.
//
// Each document or guide type is a Template registered on the Assembler.
// Templates read values through a Draft, which applies the language rule,
// the placeholder policy and the per-field fallback chain
// (answer, then profile, then default).
package assemble

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Template renders one document or guide type.
type Template struct {
	// Title per language code.
	Title map[string]string
	// Render appends the document sections to the draft.
	Render func(d *Draft) error
}

// Assembler holds the template registry. It is read-only after construction
// and safe for concurrent use.
type Assembler struct {
	templates map[string]Template
	now       func() time.Time
	base      *kb.Base
	catalogs  *catalog.Registry
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock sets the clock used for the generated_at field.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// WithKnowledgeBase sets the reference data used for thresholds, fees and
// guide facts.
func WithKnowledgeBase(base *kb.Base) Option {
	return func(a *Assembler) {
		a.base = base
	}
}

// WithThresholds overrides only the financial thresholds topic.
func WithThresholds(th kb.Snapshot) Option {
	return func(a *Assembler) {
		topics := map[string]kb.Snapshot{}
		if a.base != nil {
			for k, v := range a.base.Topics {
				topics[k] = v
			}
		}
		topics[kb.TopicThresholds] = th
		a.base = &kb.Base{Topics: topics}
	}
}

// WithCatalogs sets the question catalogs used to resolve option labels and
// lead times.
func WithCatalogs(reg *catalog.Registry) Option {
	return func(a *Assembler) {
		a.catalogs = reg
	}
}

// New creates an Assembler with the built-in templates registered.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		templates: make(map[string]Template),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.base == nil {
		a.base = kb.Default()
	}
	if a.catalogs == nil {
		reg, err := catalog.Default()
		if err != nil {
			slog.Error("Assembler.New: embedded catalogs failed to load", "error", err)
			reg, _ = catalog.NewRegistry()
		}
		a.catalogs = reg
	}
	a.Register(string(models.FlowCoverLetter), coverLetterTemplate)
	a.Register(string(models.FlowFinancialStatement), financialStatementTemplate)
	a.Register(string(models.FlowNonWorkAttestation), nonWorkAttestationTemplate)
	a.Register(string(models.FlowApostilleGuide), apostilleGuideTemplate)
	a.Register(string(models.FlowRelocationGuide), relocationGuideTemplate)
	return a
}

// Register associates a document type with a template, replacing any
// previous registration.
func (a *Assembler) Register(docType string, t Template) {
	a.templates[docType] = t
}

// Has reports whether a template is registered for docType.
func (a *Assembler) Has(docType string) bool {
	_, ok := a.templates[docType]
	return ok
}

// Types returns the registered document types in lexical order.
func (a *Assembler) Types() []string {
	out := make([]string, 0, len(a.templates))
	for t := range a.templates {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Assemble renders docType from answers and profile. An unregistered type
// returns models.ErrUnknownType. Apart from GeneratedAt the result depends
// only on the inputs.
func (a *Assembler) Assemble(docType string, answers models.Answers, profile models.Profile) (*models.DocumentDescription, error) {
	t, ok := a.templates[docType]
	if !ok {
		slog.Warn("Assembler.Assemble: unknown document type", "type", docType)
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownType, docType)
	}
	d := a.newDraft(docType, answers, profile)
	if err := t.Render(d); err != nil {
		slog.Error("Assembler.Assemble: render failed", "type", docType, "error", err)
		return nil, fmt.Errorf("render %s: %w", docType, err)
	}
	title := t.Title[d.lang]
	if title == "" {
		title = t.Title["en"]
	}
	desc := &models.DocumentDescription{
		Type:        docType,
		Title:       title,
		Language:    d.lang,
		GeneratedAt: a.now().UTC(),
		Sections:    d.sections,
	}
	slog.Debug("Assembler.Assemble: document built", "type", docType, "language", d.lang, "sections", len(d.sections), "placeholders", d.placeholders)
	return desc, nil
}

// LanguageFor derives the output language from the profile: members applying
// from inside Spain get Spanish, everyone else English.
func LanguageFor(profile models.Profile) language.Tag {
	if profile.Get(models.ProfileApplicationLocation) == "spain" {
		return language.Spanish
	}
	return language.English
}

func (a *Assembler) newDraft(docType string, answers models.Answers, profile models.Profile) *Draft {
	if answers == nil {
		answers = models.Answers{}
	}
	if profile == nil {
		profile = models.Profile{}
	}
	tag := LanguageFor(profile)
	return &Draft{
		docType:      docType,
		tag:          tag,
		lang:         tag.String(),
		printer:      message.NewPrinter(tag),
		answers:      answers,
		profile:      profile,
		placeholders: answers.Get(models.AnswerPrivacyChoice) == models.PrivacyPlaceholders,
		base:         a.base,
		catalogs:     a.catalogs,
	}
}
