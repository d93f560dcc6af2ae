package assemble

import (
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/models"
)

var (
	fieldDestination = Field{Key: "destination_city", Default: map[string]string{"en": "Spain", "es": "España"}}
	fieldBudget      = Field{Key: "budget_monthly"}
)

var relocationGuideTemplate = Template{
	Title: map[string]string{
		"en": "Personal relocation guide",
		"es": "Guía personal de traslado",
	},
	Render: renderRelocationGuide,
}

func renderRelocationGuide(d *Draft) error {
	facts := d.Snapshot(kb.TopicRelocation)
	city := d.Get(fieldDestination)

	d.Header(d.T("Moving to "+city, "Traslado a "+city))
	var budget string
	if b, ok := d.Amount(fieldBudget); ok {
		budget = d.T("Your planned monthly budget is "+d.Money(b)+".",
			"Su presupuesto mensual previsto es de "+d.Money(b)+".")
	}
	d.Paragraph(d.T(
		"This guide lists the first steps after arriving in "+city+", ordered by your priorities.",
		"Esta guía recoge los primeros pasos tras llegar a "+city+", ordenados según sus prioridades."), budget)

	first := []models.ChecklistItem{
		{Label: d.T("Register at the town hall", "Empadronarse en el ayuntamiento"), Detail: facts.Get("padron"), Status: models.StatusWarning},
		{Label: d.T("Apply for the TIE card", "Solicitar la TIE"), Detail: facts.Get("tie_deadline"), Status: models.StatusWarning},
	}
	d.Checklist(d.T("First month", "Primer mes"), first)

	for _, p := range d.List("priorities") {
		heading := d.OptionLabel(models.FlowRelocationGuide, "priorities", p)
		var body string
		switch p {
		case "housing":
			body = d.T("Long-term rentals usually ask for two months' deposit and proof of income. Visit neighbourhoods before signing.",
				"Los alquileres de larga duración suelen exigir dos meses de fianza y justificante de ingresos. Visite los barrios antes de firmar.")
		case "healthcare":
			body = d.T("Keep your private health insurance active until you qualify for the public system.",
				"Mantenga activo su seguro médico privado hasta que tenga acceso al sistema público.")
		case "banking":
			body = facts.Get("banking")
		case "taxes":
			body = d.T("Spending more than 183 days a year in Spain makes you a tax resident. Get advice before the first tax year ends.",
				"Pasar más de 183 días al año en España le convierte en residente fiscal. Asesórese antes de que termine el primer ejercicio.")
		case "schools":
			body = d.T("Public school places are assigned by the municipality of residence, so register at the town hall first.",
				"Las plazas escolares públicas se asignan según el municipio de residencia, por lo que conviene empadronarse primero.")
		case "driving":
			body = facts.Get("driving")
		}
		if body == "" {
			continue
		}
		d.Header(heading)
		d.Paragraph(body)
	}

	if d.Choice("household") == "family" && d.Choice("school_age_children") == "yes" {
		d.Paragraph(d.T(
			"School enrolment for children opens in spring. Bring the children's birth certificates, vaccination records and the padrón certificate.",
			"La matrícula escolar se abre en primavera. Lleve los certificados de nacimiento de los hijos, la cartilla de vacunación y el certificado de empadronamiento."))
	}
	if d.Choice("pets") == "yes" {
		d.Paragraph(d.T(
			"Pets need a microchip, a rabies vaccination and an EU health certificate issued shortly before travel.",
			"Las mascotas necesitan microchip, vacuna antirrábica y un certificado sanitario de la UE expedido poco antes del viaje."))
	}
	return nil
}
