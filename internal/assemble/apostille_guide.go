package assemble

import (
	"sort"

	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/models"
)

var fieldIssuingState = Field{Key: "issuing_state"}

var apostilleGuideTemplate = Template{
	Title: map[string]string{
		"en": "Apostille guide",
		"es": "Guía de apostillas",
	},
	Render: renderApostilleGuide,
}

type apostilleEntry struct {
	value    string
	label    string
	lead     *catalog.Duration
	position int
}

func renderApostilleGuide(d *Draft) error {
	facts := d.Snapshot(kb.TopicApostille)

	intro := d.T("Start with the documents that take longest to obtain.",
		"Empiece por los documentos que más tardan en obtenerse.")
	if state, ok := d.Value(fieldIssuingState); ok {
		intro = d.T("Your documents were issued in "+state+". ", "Sus documentos se expidieron en "+state+". ") + intro
	}
	var authority string
	if a := kb.ApostilleAuthority(facts, d.Get(fieldIssuingState), d.Lang()); a != "" {
		authority = d.T("Apostilles are issued by the "+a+".", "La apostilla la expide la "+a+".")
	}
	d.Paragraph(intro, authority)

	entries := apostilleEntries(d)
	ready := map[string]bool{}
	for _, v := range d.List("documents_ready") {
		ready[v] = true
	}

	items := make([]models.ChecklistItem, 0, len(entries))
	for _, e := range entries {
		item := models.ChecklistItem{Label: e.label}
		switch {
		case ready[e.value]:
			item.Status = models.StatusOK
			item.Detail = d.T("Already apostilled.", "Ya apostillado.")
		case e.lead != nil:
			item.Status = models.StatusWarning
			item.Detail = d.T("Allow "+e.lead.String()+".", "Prevea "+durationES(*e.lead)+".")
		default:
			item.Status = models.StatusWarning
			item.Detail = d.T("Processing time unknown; check with the issuing authority.",
				"Plazo desconocido; consulte con la autoridad emisora.")
		}
		items = append(items, item)
	}
	d.Checklist(d.T("Documents by lead time", "Documentos por plazo de tramitación"), items)

	if v := facts.Get("validity_criminal_record"); v != "" {
		for _, e := range entries {
			if e.value == "criminal_record" {
				d.Paragraph(d.T("The criminal record certificate is valid for "+v+", so time its request close to the appointment.",
					"El certificado de antecedentes penales tiene una validez de "+v+"; solicítelo cerca de la fecha de la cita."))
				break
			}
		}
	}

	if d.Choice("needs_translation") == "yes" {
		d.Paragraph(d.T(
			"Documents not written in Spanish need a sworn translation (traducción jurada) made after the apostille, including the apostille itself.",
			"Los documentos que no estén en español necesitan una traducción jurada realizada después de la apostilla, que también debe traducirse."),
			feeSentence(d, "sworn_translation_per_page"))
	}
	return nil
}

// apostilleEntries returns the requested documents ordered by lead time,
// longest first. Ties keep catalog order and documents without a known lead
// time go last.
func apostilleEntries(d *Draft) []apostilleEntry {
	var q catalog.Question
	if c, ok := d.Catalog(models.FlowApostilleGuide); ok {
		q, _ = c.Lookup("documents_needed")
	}
	position := map[string]int{}
	for i, o := range q.Options {
		position[o.Value] = i
	}

	needed := d.List("documents_needed")
	entries := make([]apostilleEntry, 0, len(needed))
	for _, v := range needed {
		e := apostilleEntry{value: v, label: v, position: len(q.Options)}
		if o, ok := q.Option(v); ok {
			e.label = o.LabelFor(d.Lang())
			e.lead = o.LeadTime
			e.position = position[v]
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.lead == nil && b.lead == nil:
			return a.position < b.position
		case a.lead == nil:
			return false
		case b.lead == nil:
			return true
		case a.lead.Less(*b.lead):
			return true
		case b.lead.Less(*a.lead):
			return false
		default:
			return a.position < b.position
		}
	})
	return entries
}

func durationES(dur catalog.Duration) string {
	unit := map[catalog.DurationUnit]string{
		catalog.UnitDays:   "días",
		catalog.UnitWeeks:  "semanas",
		catalog.UnitMonths: "meses",
	}[dur.Unit]
	if dur.Min == dur.Max {
		return models.FormatNumber(float64(dur.Max)) + " " + unit
	}
	return models.FormatNumber(float64(dur.Min)) + "-" + models.FormatNumber(float64(dur.Max)) + " " + unit
}

func feeSentence(d *Draft, key string) string {
	fee := d.Snapshot(kb.TopicFees).Get(key)
	if fee == "" {
		return ""
	}
	return d.T("Expect about €"+fee+" per page.", "Cuente con unos "+fee+" € por página.")
}
