package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/models"
)

// Anchor phrases requested by the health insurance verification prompt.
const (
	AnchorAssessment        = "ASSESSMENT"
	AnchorCoverage          = "COVERAGE"
	AnchorCopays            = "COPAYS"
	AnchorWaitingPeriod     = "WAITING_PERIOD"
	AnchorRepatriation      = "REPATRIATION"
	AnchorAuthorizedInsurer = "AUTHORIZED_INSURER"
)

// HealthAnchors lists the verification anchors in output order.
var HealthAnchors = []string{
	AnchorAssessment,
	AnchorCoverage,
	AnchorCopays,
	AnchorWaitingPeriod,
	AnchorRepatriation,
	AnchorAuthorizedInsurer,
}

// Field is one labelled line extracted from a structured response.
type Field struct {
	Name   string            `json:"name"`
	Status models.ItemStatus `json:"status"`
	Text   string            `json:"text"`
	Found  bool              `json:"found"`
}

// Section is one markdown-headed block of a prose response.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// GuideContent is the parsed form of a generated guide. Raw always holds
// the response exactly as received.
type GuideContent struct {
	GuideType  models.FlowType   `json:"guide_type"`
	Raw        string            `json:"raw"`
	Structured bool              `json:"structured"`
	Overall    models.ItemStatus `json:"overall,omitempty"`
	Fields     []Field           `json:"fields,omitempty"`
	Sections   []Section         `json:"sections,omitempty"`
}

// Field returns the extracted field with the given anchor name.
func (g *GuideContent) Field(name string) (Field, bool) {
	for _, f := range g.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// anchorLine matches "ASSESSMENT: ..." at line start, tolerating list
// bullets, numbering and markdown emphasis around the label.
var anchorLine = regexp.MustCompile(`(?i)^\s*(?:[-*•+]\s+|\d+[.)]\s+)?(?:\*\*|__)?\s*([a-z_ ]+?)\s*(?:\*\*|__)?\s*:\s*(?:\*\*|__)?\s*(.*)$`)

var headingLine = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*#*\s*$`)

// ParseResponse extracts structured content from a generated response. When
// an expected anchor or heading is missing the content is still returned,
// with Structured false, alongside models.ErrEnrichmentParseIncomplete.
func ParseResponse(guideType models.FlowType, raw string) (*GuideContent, error) {
	switch guideType {
	case models.FlowHealthInsuranceVerification:
		return parseAnchors(guideType, raw, HealthAnchors)
	case models.FlowRelocationGuide, models.FlowApostilleGuide:
		return parseSections(guideType, raw)
	default:
		return nil, fmt.Errorf("%w: no response parser for %s", models.ErrUnknownType, guideType)
	}
}

func parseAnchors(guideType models.FlowType, raw string, anchors []string) (*GuideContent, error) {
	want := make(map[string]bool, len(anchors))
	for _, a := range anchors {
		want[a] = true
	}
	found := map[string]*Field{}
	var current *Field
	// A field runs from its anchor line to the next blank line or label.
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			current = nil
			continue
		}
		if m := anchorLine.FindStringSubmatch(line); m != nil {
			current = nil
			name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "_"))
			if _, dup := found[name]; want[name] && !dup {
				current = &Field{Name: name, Text: strings.TrimSpace(m[2]), Found: true}
				found[name] = current
			}
			continue
		}
		if current != nil {
			current.Text = strings.TrimSpace(current.Text + " " + strings.TrimSpace(line))
		}
	}

	content := &GuideContent{GuideType: guideType, Raw: raw, Structured: true, Overall: models.StatusUnclear}
	var missing []string
	for _, a := range anchors {
		f, ok := found[a]
		if !ok {
			missing = append(missing, a)
			content.Structured = false
			content.Fields = append(content.Fields, Field{Name: a, Status: models.StatusUnclear})
			continue
		}
		f.Status = classify(f.Text)
		f.Text = stripGlyphs(f.Text)
		content.Fields = append(content.Fields, *f)
	}
	if f, ok := content.Field(AnchorAssessment); ok {
		content.Overall = f.Status
	}
	if len(missing) > 0 {
		return content, fmt.Errorf("%w: missing %s", models.ErrEnrichmentParseIncomplete, strings.Join(missing, ", "))
	}
	return content, nil
}

// glyphs is the fixed marker legend, ⚠ with and without the emoji
// variation selector.
var glyphs = []struct {
	mark   string
	status models.ItemStatus
}{
	{"✅", models.StatusOK},
	{"✔", models.StatusOK},
	{"⚠️", models.StatusWarning},
	{"⚠", models.StatusWarning},
	{"❌", models.StatusFail},
	{"✖", models.StatusFail},
}

// classify returns the status of the first marker in text, or unclear.
func classify(text string) models.ItemStatus {
	best, status := -1, models.StatusUnclear
	for _, g := range glyphs {
		if i := strings.Index(text, g.mark); i >= 0 && (best < 0 || i < best) {
			best, status = i, g.status
		}
	}
	return status
}

func stripGlyphs(text string) string {
	for _, g := range glyphs {
		text = strings.ReplaceAll(text, g.mark, "")
	}
	text = strings.ReplaceAll(text, "\uFE0F", "")
	return strings.Join(strings.Fields(text), " ")
}

func parseSections(guideType models.FlowType, raw string) (*GuideContent, error) {
	content := &GuideContent{GuideType: guideType, Raw: raw}
	var cur *Section
	var body []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if cur != nil {
			cur.Body = text
			content.Sections = append(content.Sections, *cur)
		} else if text != "" {
			content.Sections = append(content.Sections, Section{Body: text})
		}
		body = nil
	}
	headings := 0
	for _, line := range strings.Split(raw, "\n") {
		if m := headingLine.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Section{Heading: strings.Trim(m[1], "*_ ")}
			headings++
			continue
		}
		body = append(body, line)
	}
	flush()
	if headings == 0 {
		return content, fmt.Errorf("%w: no section headings", models.ErrEnrichmentParseIncomplete)
	}
	content.Structured = true
	return content, nil
}

// Description converts parsed content into a document description so an
// enriched guide can be rendered and exported like a template document.
// Unstructured content becomes a single paragraph holding the raw text.
func (g *GuideContent) Description(title, lang string) *models.DocumentDescription {
	desc := &models.DocumentDescription{Type: string(g.GuideType), Title: title, Language: lang}
	if len(g.Fields) > 0 {
		items := make([]models.ChecklistItem, 0, len(g.Fields))
		for _, f := range g.Fields {
			items = append(items, models.ChecklistItem{Label: fieldLabel(f.Name), Detail: f.Text, Status: f.Status})
		}
		desc.Sections = append(desc.Sections, models.Section{Kind: models.SectionChecklist, Heading: title, Items: items})
	}
	if !g.Structured {
		desc.Sections = append(desc.Sections, models.Section{Kind: models.SectionParagraph, Text: strings.TrimSpace(g.Raw)})
		return desc
	}
	for _, s := range g.Sections {
		if s.Heading != "" {
			desc.Sections = append(desc.Sections, models.Section{Kind: models.SectionHeader, Text: s.Heading})
		}
		for _, p := range strings.Split(s.Body, "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				desc.Sections = append(desc.Sections, models.Section{Kind: models.SectionParagraph, Text: p})
			}
		}
	}
	return desc
}

func fieldLabel(anchor string) string {
	words := strings.Split(strings.ToLower(anchor), "_")
	if len(words) > 0 && words[0] != "" {
		words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	}
	return strings.Join(words, " ")
}
