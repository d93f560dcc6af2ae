package assemble

import (
	"github.com/BTreeMap/DossierPipe/internal/models"
)

var (
	coverVisaType = Field{ProfileKey: models.ProfileVisaType, Default: map[string]string{"en": "non_lucrative", "es": "non_lucrative"}}
	coverReason   = Field{Key: "reason_for_moving", Default: map[string]string{
		"en": "I wish to settle in Spain and enjoy its culture and way of life.",
		"es": "Deseo establecerme en España y disfrutar de su cultura y modo de vida.",
	}}
	coverCity         = Field{Key: "intended_city", ProfileKey: "intended_city"}
	coverPropertyCity = Field{Key: "property_city"}
	coverInsurer      = Field{Key: "insurance_provider", ProfileKey: "insurance_provider"}
	coverConsulate    = Field{ProfileKey: models.ProfileConsulate}
)

var coverLetterTemplate = Template{
	Title: map[string]string{
		"en": "Cover letter",
		"es": "Carta de presentación",
	},
	Render: renderCoverLetter,
}

func renderCoverLetter(d *Draft) error {
	name := d.Get(fieldFullName)
	if name == "" {
		name = d.T("the applicant", "el solicitante")
	}

	// Sender block
	for _, f := range []Field{fieldFullName, fieldAddress, fieldEmail, fieldPhone} {
		if v, ok := d.Value(f); ok {
			d.Header(v)
		}
	}

	// Recipient
	if d.Choice(models.ProfileApplicationLocation) == "spain" {
		d.Header(d.T("To the Foreigners' Office (Oficina de Extranjería)", "A la Oficina de Extranjería"))
	} else if consulate, ok := d.Value(coverConsulate); ok {
		d.Header(d.T("To the Consulate General of Spain in "+consulate, "Al Consulado General de España en "+consulate))
	} else {
		d.Header(d.T("To the Consulate General of Spain", "Al Consulado General de España"))
	}
	d.Header(d.T("Dear Sir or Madam,", "Estimados señores:"))

	// Introduction
	visa := d.OptionLabel(models.FlowProfileIntake, models.ProfileVisaType, d.Get(coverVisaType))
	intro := d.T("I, "+name, "Yo, "+name)
	if passport, ok := d.Value(fieldPassport); ok {
		intro += d.T(", holder of passport number "+passport, ", con pasaporte número "+passport)
	}
	if nationality, ok := d.Value(fieldNationality); ok {
		intro += d.T(", a national of "+nationality, ", de nacionalidad "+nationality)
	}
	intro += d.T(", respectfully submit my application for a "+visa+".",
		", presento respetuosamente mi solicitud de "+visa+".")
	d.Paragraph(intro, spouseSentence(d))

	// Motivation
	var city string
	if c, ok := d.Value(coverCity); ok {
		city = d.T("I intend to reside in "+c+".", "Tengo intención de residir en "+c+".")
	}
	d.Paragraph(d.Get(coverReason), city)

	// Employment narrative
	d.Paragraph(employmentSentence(d))

	// Financial means
	var means []string
	if income, ok := d.Amount(fieldIncome); ok {
		means = append(means, d.T("My monthly income amounts to "+d.Money(income)+".",
			"Mis ingresos mensuales ascienden a "+d.Money(income)+"."))
	}
	if savings, ok := d.Amount(fieldSavings); ok {
		means = append(means, d.T("I also hold savings of "+d.Money(savings)+".",
			"Dispongo además de ahorros por valor de "+d.Money(savings)+"."))
	}
	if len(means) > 0 {
		means = append(means, d.T("These means allow me to live in Spain without carrying out any work activity.",
			"Estos medios me permiten residir en España sin ejercer actividad laboral alguna."))
	}
	d.Paragraph(means...)

	// Housing
	d.Paragraph(propertySentence(d))

	// Health insurance
	if insurer, ok := d.Value(coverInsurer); ok {
		d.Paragraph(d.T(
			"I hold private health insurance with "+insurer+", an insurer authorized to operate in Spain, with full coverage and no copayments.",
			"Dispongo de un seguro médico privado con "+insurer+", entidad autorizada para operar en España, con cobertura completa y sin copagos."))
	}

	d.Paragraph(d.T(
		"I enclose the supporting documents required for the application and remain at your disposal for any further information.",
		"Adjunto la documentación requerida para la solicitud y quedo a su disposición para cualquier información adicional."))
	d.Header(d.T("Yours faithfully,", "Atentamente,"))
	d.Header(name)
	return nil
}

// spouseSentence mentions the accompanying family. It is empty for members
// applying alone or with no applicants answer.
func spouseSentence(d *Draft) string {
	applicants := d.Choice(models.ProfileApplicants)
	if applicants == "" || applicants == "alone" {
		return ""
	}
	spouse := d.T("my spouse", "mi cónyuge")
	if s, ok := d.Value(fieldSpouseName); ok {
		spouse += ", " + s + ","
	}
	if applicants == "with_family" {
		if children := d.dependentCount() - 1; children > 0 {
			return d.T("I will be accompanied by "+spouse+" and our "+d.Count(children)+" children, who apply as my dependants.",
				"Me acompañarán "+spouse+" y nuestros "+d.Count(children)+" hijos, que solicitan el visado como familiares a mi cargo.")
		}
		return d.T("I will be accompanied by "+spouse+" and our children, who apply as my dependants.",
			"Me acompañarán "+spouse+" y nuestros hijos, que solicitan el visado como familiares a mi cargo.")
	}
	return d.T("I will be accompanied by "+spouse+" who applies as my dependant.",
		"Me acompañará "+spouse+" que solicita el visado como familiar a mi cargo.")
}

// employmentSentence is empty when the status is missing or not_working.
func employmentSentence(d *Draft) string {
	switch d.Choice(models.ProfileEmploymentStatus) {
	case "retired":
		return d.T("I am retired and my pension covers my living expenses.",
			"Estoy jubilado y mi pensión cubre mis gastos de manutención.")
	case "remote_employee":
		if employer, ok := d.Value(fieldEmployer); ok {
			return d.T("I work remotely for "+employer+", a company based outside Spain, and will continue to do so exclusively for clients abroad.",
				"Trabajo en remoto para "+employer+", empresa con sede fuera de España, y seguiré haciéndolo exclusivamente para clientes en el extranjero.")
		}
		return d.T("I work remotely for a company based outside Spain.",
			"Trabajo en remoto para una empresa con sede fuera de España.")
	case "self_employed":
		return d.T("I am self-employed and my clients are located outside Spain.",
			"Soy trabajador autónomo y mis clientes se encuentran fuera de España.")
	default:
		return ""
	}
}

// propertySentence is empty unless the member owns or rents a home in Spain.
func propertySentence(d *Draft) string {
	city, hasCity := d.Value(coverPropertyCity)
	switch d.Choice(models.AnswerPropertyStatus) {
	case "own":
		if hasCity {
			return d.T("I own a property in "+city+", which will be my home in Spain.",
				"Soy propietario de una vivienda en "+city+", que será mi domicilio en España.")
		}
		return d.T("I own a property in Spain, which will be my home.",
			"Soy propietario de una vivienda en España, que será mi domicilio.")
	case "rent":
		if hasCity {
			return d.T("I have signed a rental contract for a home in "+city+".",
				"He firmado un contrato de alquiler de una vivienda en "+city+".")
		}
		return d.T("I have signed a rental contract for a home in Spain.",
			"He firmado un contrato de alquiler de una vivienda en España.")
	default:
		return ""
	}
}
