// Package enrich orchestrates the optional long-form enrichment of guides by
// an external text-generation service: prompt composition from versioned
// templates, response parsing by anchor phrases, and fallback to the plain
// template output.
package enrich

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/assemble"
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/models"
	"golang.org/x/text/language"
)

// NotProvided replaces tokens that have no slot definition.
const NotProvided = "not provided"

// Slot names the sources of one template token, tried in order: derived
// request context, answer, profile, knowledge base ("topic.key"), then
// Default.
type Slot struct {
	Context string
	Answer  string
	Profile string
	KB      string
	Default string
}

// Derived context values available to slots.
const (
	ContextLanguage = "language"
	ContextKBAsOf   = "kb_as_of"

	// ContextApostilleAuthority is the authority for the answered issuing
	// state or country.
	ContextApostilleAuthority = "apostille_authority"
)

// PromptTemplate is the fixed, versioned prompt of one guide type.
type PromptTemplate struct {
	GuideType models.FlowType
	Version   string
	System    string
	Body      string
	Slots     map[string]Slot
}

// ID returns "guide_type/version".
func (t PromptTemplate) ID() string {
	return string(t.GuideType) + "/" + t.Version
}

// Prompt is a composed prompt ready to send.
type Prompt struct {
	TemplateID string
	System     string
	Text       string
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// BuildPrompt interpolates answers, profile and knowledge-base values into
// the template of guideType. Every token is replaced: absent values take the
// slot default and tokens without a slot take NotProvided.
func BuildPrompt(guideType models.FlowType, answers models.Answers, profile models.Profile, base *kb.Base) (Prompt, error) {
	t, ok := templates[guideType]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: no prompt template for %s", models.ErrUnknownType, guideType)
	}
	derived := map[string]string{
		ContextLanguage: "English",
	}
	if assemble.LanguageFor(profile) == language.Spanish {
		derived[ContextLanguage] = "Spanish"
	}
	if base != nil {
		derived[ContextKBAsOf] = base.AsOf
		derived[ContextApostilleAuthority] = kb.ApostilleAuthority(base.Snapshot(kb.TopicApostille), answers.Get("issuing_state"), "en")
	}
	resolve := func(token string) string {
		slot, ok := t.Slots[token]
		if !ok {
			return NotProvided
		}
		if v := derived[slot.Context]; slot.Context != "" && v != "" {
			return v
		}
		if v := slotValue(slot, answers, profile, base); v != "" {
			return v
		}
		if slot.Default != "" {
			return slot.Default
		}
		return NotProvided
	}
	fill := func(s string) string {
		return tokenPattern.ReplaceAllStringFunc(s, func(m string) string {
			return resolve(tokenPattern.FindStringSubmatch(m)[1])
		})
	}
	return Prompt{
		TemplateID: t.ID(),
		System:     fill(t.System),
		Text:       fill(t.Body),
	}, nil
}

func slotValue(slot Slot, answers models.Answers, profile models.Profile, base *kb.Base) string {
	if slot.Answer != "" {
		if v := strings.TrimSpace(answers.Get(slot.Answer)); v != "" {
			return v
		}
	}
	if slot.Profile != "" {
		if v := strings.TrimSpace(profile.Get(slot.Profile)); v != "" {
			return v
		}
	}
	if slot.KB != "" && base != nil {
		topic, key, _ := strings.Cut(slot.KB, ".")
		if v := strings.TrimSpace(base.Snapshot(topic).Get(key)); v != "" {
			return v
		}
	}
	return ""
}

// Templates returns the registered prompt templates ordered by guide type.
func Templates() []PromptTemplate {
	out := make([]PromptTemplate, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuideType < out[j].GuideType })
	return out
}

// HasTemplate reports whether guideType can be enriched.
func HasTemplate(guideType models.FlowType) bool {
	_, ok := templates[guideType]
	return ok
}

const systemPreamble = `You are an assistant helping people prepare a Spanish long-stay visa application.
Be accurate and concrete. Never invent fees, deadlines or legal requirements beyond the reference data given.
Write the answer in {{language}}.`

var languageSlot = Slot{Context: ContextLanguage, Default: "English"}

var templates = map[models.FlowType]PromptTemplate{
	models.FlowRelocationGuide: {
		GuideType: models.FlowRelocationGuide,
		Version:   "v2",
		System:    systemPreamble,
		Body: `Write a personal relocation guide for someone moving to {{destination_city}}, Spain.

Household: {{household}}
School-age children: {{school_age_children}}
Priorities: {{priorities}}
Monthly budget in euros: {{budget_monthly}}
Pets: {{pets}}
Visa type: {{visa_type}}
Nationality: {{nationality}}
Planned move date: {{move_date}}

Reference data (as of {{kb_as_of}}):
- Town hall registration: {{padron}}
- TIE card: {{tie_deadline}}
- Banking: {{banking}}
- Driving: {{driving}}

Structure the guide with one markdown heading (## ) per priority, in the order given, followed by a final "## First month" heading with a dated checklist.`,
		Slots: map[string]Slot{
			"language":            languageSlot,
			"destination_city":    {Answer: "destination_city", Default: "an undecided city"},
			"household":           {Answer: "household", Profile: models.ProfileApplicants, Default: "not stated"},
			"school_age_children": {Answer: "school_age_children", Default: "no"},
			"priorities":          {Answer: "priorities", Default: "housing, healthcare, banking"},
			"budget_monthly":      {Answer: "budget_monthly", Default: "not stated"},
			"pets":                {Answer: "pets", Default: "no"},
			"visa_type":           {Profile: models.ProfileVisaType, Default: "non-lucrative"},
			"nationality":         {Profile: models.ProfileNationality, Default: "not stated"},
			"move_date":           {Profile: models.ProfileMoveDate, Default: "not decided"},
			"kb_as_of":            {Context: ContextKBAsOf, Default: "unknown date"},
			"padron":              {KB: kb.TopicRelocation + ".padron"},
			"tie_deadline":        {KB: kb.TopicRelocation + ".tie_deadline"},
			"banking":             {KB: kb.TopicRelocation + ".banking"},
			"driving":             {KB: kb.TopicRelocation + ".driving"},
		},
	},
	models.FlowApostilleGuide: {
		GuideType: models.FlowApostilleGuide,
		Version:   "v2",
		System:    systemPreamble,
		Body: `Explain how to obtain apostilles for the following documents issued in {{issuing_state}}: {{documents_needed}}.
Documents already apostilled: {{documents_ready}}.
Sworn translation needed: {{needs_translation}}.

Reference data:
- Apostille authority: {{authority}}
- Criminal record validity: {{criminal_record_validity}}
- Translation: {{translation}}
- Sworn translation fee per page in euros: {{translation_fee}}

Use one markdown heading (## ) per document, longest lead time first, and end with a "## Translation" heading.`,
		Slots: map[string]Slot{
			"language":                 languageSlot,
			"issuing_state":            {Answer: "issuing_state", Default: "the issuing country"},
			"documents_needed":         {Answer: "documents_needed", Default: "none listed"},
			"documents_ready":          {Answer: "documents_ready", Default: "none"},
			"needs_translation":        {Answer: "needs_translation", Default: "unknown"},
			"authority":                {Context: ContextApostilleAuthority, KB: kb.TopicApostille + ".authority_other"},
			"criminal_record_validity": {KB: kb.TopicApostille + ".validity_criminal_record"},
			"translation":              {KB: kb.TopicApostille + ".translation"},
			"translation_fee":          {KB: kb.TopicFees + ".sworn_translation_per_page"},
		},
	},
	models.FlowHealthInsuranceVerification: {
		GuideType: models.FlowHealthInsuranceVerification,
		Version:   "v3",
		System:    systemPreamble,
		Body: `Review the attached health insurance policy for a Spanish {{visa_type}} visa application.

Insurer named by the applicant: {{insurer_name}}
Policy type stated by the applicant: {{policy_type}}
Coverage start: {{coverage_start}}

Requirements:
- {{requirement}}
- {{copays}}
- {{waiting_periods}}
- {{repatriation}}
- Minimum duration: {{minimum_duration}}

Answer with exactly these lines, each starting with its label and then one marker:
✅ when the requirement is met, ⚠️ when it is unclear or partly met, ❌ when it is not met.

ASSESSMENT: <marker> overall verdict in one sentence
COVERAGE: <marker> explanation
COPAYS: <marker> explanation
WAITING_PERIOD: <marker> explanation
REPATRIATION: <marker> explanation
AUTHORIZED_INSURER: <marker> explanation`,
		Slots: map[string]Slot{
			"language":         languageSlot,
			"visa_type":        {Profile: models.ProfileVisaType, Default: "non-lucrative"},
			"insurer_name":     {Answer: "insurer_name", Default: "not stated"},
			"policy_type":      {Answer: "policy_type", Default: "unsure"},
			"coverage_start":   {Answer: "coverage_start", Default: "not stated"},
			"requirement":      {KB: kb.TopicHealthInsurance + ".requirement"},
			"copays":           {KB: kb.TopicHealthInsurance + ".copays"},
			"waiting_periods":  {KB: kb.TopicHealthInsurance + ".waiting_periods"},
			"repatriation":     {KB: kb.TopicHealthInsurance + ".repatriation"},
			"minimum_duration": {KB: kb.TopicHealthInsurance + ".minimum_duration", Default: "12 months"},
		},
	},
}
