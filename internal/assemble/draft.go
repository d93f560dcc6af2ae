package assemble

import (
	"strconv"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/flow"
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Field declares where a template value comes from. Each link of the
// fallback chain is optional: an empty Key skips the answer lookup, an empty
// ProfileKey skips the profile and a nil Default means the value may be
// missing.
type Field struct {
	Key        string
	ProfileKey string
	Default    map[string]string
	// PII fields are replaced by their placeholder token when the member
	// chose placeholders.
	PII         bool
	Placeholder map[string]string
}

// Draft is the per-call rendering context handed to a Template.
type Draft struct {
	docType      string
	tag          language.Tag
	lang         string
	printer      *message.Printer
	answers      models.Answers
	profile      models.Profile
	placeholders bool
	base         *kb.Base
	catalogs     *catalog.Registry
	sections     []models.Section
}

// Lang returns the output language code ("en" or "es").
func (d *Draft) Lang() string { return d.lang }

// Placeholders reports whether PII fields render as placeholder tokens.
func (d *Draft) Placeholders() bool { return d.placeholders }

// T picks the string for the output language.
func (d *Draft) T(en, es string) string {
	if d.lang == "es" {
		return es
	}
	return en
}

// Value resolves f through the placeholder policy and the fallback chain.
func (d *Draft) Value(f Field) (string, bool) {
	if f.PII && d.placeholders {
		return d.placeholderFor(f), true
	}
	if f.Key != "" {
		if v := strings.TrimSpace(d.answers.Get(f.Key)); v != "" {
			return v, true
		}
	}
	if f.ProfileKey != "" {
		if v := strings.TrimSpace(d.profile.Get(f.ProfileKey)); v != "" {
			return v, true
		}
	}
	if f.Default != nil {
		if v := f.Default[d.lang]; v != "" {
			return v, true
		}
		if v := f.Default["en"]; v != "" {
			return v, true
		}
	}
	return "", false
}

// Get is Value without the presence flag.
func (d *Draft) Get(f Field) string {
	v, _ := d.Value(f)
	return v
}

// Choice resolves a choice-valued field (answer, then profile) ignoring
// placeholders.
func (d *Draft) Choice(key string) string {
	if v := d.answers.Get(key); v != "" {
		return v
	}
	return strings.TrimSpace(d.profile.Get(key))
}

// Amount resolves f as a money amount. Placeholders never apply to amounts.
func (d *Draft) Amount(f Field) (float64, bool) {
	if f.Key != "" {
		if v, ok := d.answers.Value(f.Key); ok {
			if n, ok := v.Float(); ok {
				return n, true
			}
		}
	}
	if f.ProfileKey != "" {
		if s := strings.TrimSpace(d.profile.Get(f.ProfileKey)); s != "" {
			if n, err := models.ParseAmount(s); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// List resolves a multi-choice answer into its entries, splitting
// comma-joined text as sent by chat transports.
func (d *Draft) List(key string) []string {
	v, ok := d.answers.Value(key)
	if !ok {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, item := range v.Items() {
		for _, part := range flow.NormalizeMultiChoice(item) {
			if seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// Money formats an amount in euros for the output language.
func (d *Draft) Money(n float64) string {
	s := d.printer.Sprintf("%.2f", n)
	if d.lang == "es" {
		return s + " €"
	}
	return "€" + s
}

// Count formats an integer for the output language.
func (d *Draft) Count(n int) string {
	return d.printer.Sprintf("%d", n)
}

// Snapshot returns a knowledge-base topic.
func (d *Draft) Snapshot(topic string) kb.Snapshot {
	return d.base.Snapshot(topic)
}

// Catalog returns the catalog of a flow type.
func (d *Draft) Catalog(ft models.FlowType) (*catalog.Catalog, bool) {
	if d.catalogs == nil {
		return nil, false
	}
	return d.catalogs.Get(ft)
}

// OptionLabel returns the localized label of an option, or the value itself.
func (d *Draft) OptionLabel(ft models.FlowType, questionID, value string) string {
	c, ok := d.Catalog(ft)
	if !ok {
		return value
	}
	q, ok := c.Lookup(questionID)
	if !ok {
		return value
	}
	o, ok := q.Option(value)
	if !ok {
		return value
	}
	return o.LabelFor(d.lang)
}

// Header appends a header section.
func (d *Draft) Header(text string) {
	d.sections = append(d.sections, models.Section{Kind: models.SectionHeader, Text: text})
}

// Paragraph appends a paragraph built from sentences. Empty sentences are
// skipped and an empty paragraph is not emitted.
func (d *Draft) Paragraph(sentences ...string) {
	var parts []string
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return
	}
	d.sections = append(d.sections, models.Section{Kind: models.SectionParagraph, Text: strings.Join(parts, " ")})
}

// Table appends a table section.
func (d *Draft) Table(heading string, columns []string, rows [][]string) {
	d.sections = append(d.sections, models.Section{Kind: models.SectionTable, Heading: heading, Columns: columns, Rows: rows})
}

// Checklist appends a checklist section. Empty checklists are not emitted.
func (d *Draft) Checklist(heading string, items []models.ChecklistItem) {
	if len(items) == 0 {
		return
	}
	d.sections = append(d.sections, models.Section{Kind: models.SectionChecklist, Heading: heading, Items: items})
}

func (d *Draft) placeholderFor(f Field) string {
	if tok := f.Placeholder[d.lang]; tok != "" {
		return tok
	}
	key := f.ProfileKey
	if key == "" {
		key = f.Key
	}
	if tokens, ok := placeholderTokens[key]; ok {
		return d.T(tokens[0], tokens[1])
	}
	label := strings.ToUpper(strings.ReplaceAll(key, "_", " "))
	return d.T("[YOUR "+label+"]", "[SU "+label+"]")
}

// placeholderTokens maps PII profile keys to their English and Spanish tokens.
var placeholderTokens = map[string][2]string{
	models.ProfileFullName:       {"[YOUR FULL NAME]", "[SU NOMBRE COMPLETO]"},
	models.ProfilePassportNumber: {"[YOUR PASSPORT NUMBER]", "[SU NÚMERO DE PASAPORTE]"},
	models.ProfileAddress:        {"[YOUR HOME ADDRESS]", "[SU DOMICILIO]"},
	models.ProfileEmail:          {"[YOUR EMAIL ADDRESS]", "[SU CORREO ELECTRÓNICO]"},
	models.ProfilePhone:          {"[YOUR PHONE NUMBER]", "[SU NÚMERO DE TELÉFONO]"},
	models.ProfileDateOfBirth:    {"[YOUR DATE OF BIRTH]", "[SU FECHA DE NACIMIENTO]"},
	models.ProfileSpouseName:     {"[YOUR SPOUSE'S FULL NAME]", "[NOMBRE COMPLETO DE SU CÓNYUGE]"},
	models.ProfileEmployerName:   {"[YOUR EMPLOYER'S NAME]", "[NOMBRE DE SU EMPLEADOR]"},
}

// Shared fields.
var (
	fieldFullName    = Field{ProfileKey: models.ProfileFullName, PII: true}
	fieldPassport    = Field{ProfileKey: models.ProfilePassportNumber, PII: true}
	fieldAddress     = Field{ProfileKey: models.ProfileAddress, PII: true}
	fieldEmail       = Field{ProfileKey: models.ProfileEmail, PII: true}
	fieldPhone       = Field{ProfileKey: models.ProfilePhone, PII: true}
	fieldDateOfBirth = Field{ProfileKey: models.ProfileDateOfBirth, PII: true}
	fieldSpouseName  = Field{ProfileKey: models.ProfileSpouseName, PII: true}
	fieldEmployer    = Field{Key: "employer_name", ProfileKey: models.ProfileEmployerName, PII: true}
	fieldNationality = Field{ProfileKey: models.ProfileNationality}
	fieldSavings     = Field{Key: "savings", ProfileKey: models.ProfileSavings}
	fieldIncome      = Field{Key: "monthly_income", ProfileKey: models.ProfileMonthlyIncome}
)

// dependentCount returns the number of family members joining the main
// applicant: the spouse plus any children.
func (d *Draft) dependentCount() int {
	n := 0
	switch d.Choice(models.ProfileApplicants) {
	case "with_spouse":
		n = 1
	case "with_family":
		n = 1
		if c, err := strconv.Atoi(d.Choice(models.ProfileDependents)); err == nil && c > 0 {
			n += c
		}
	}
	return n
}
