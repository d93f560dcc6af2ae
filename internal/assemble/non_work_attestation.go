package assemble

import "github.com/BTreeMap/DossierPipe/internal/models"

var (
	fieldIncomeSource = Field{Key: "foreign_income_source", ProfileKey: models.ProfileEmployerName, PII: true}
	fieldSigningPlace = Field{Key: "place_of_signing", Default: map[string]string{"en": "[PLACE]", "es": "[LUGAR]"}}
)

var nonWorkAttestationTemplate = Template{
	Title: map[string]string{
		"en": "Sworn statement of not working in Spain",
		"es": "Declaración responsable de no ejercer actividad laboral en España",
	},
	Render: renderNonWorkAttestation,
}

func renderNonWorkAttestation(d *Draft) error {
	name := d.Get(fieldFullName)
	if name == "" {
		name = d.T("The undersigned", "El abajo firmante")
	}

	statement := d.T("I, "+name, "Yo, "+name)
	if passport, ok := d.Value(fieldPassport); ok {
		statement += d.T(", holder of passport number "+passport, ", con pasaporte número "+passport)
	}
	if nationality, ok := d.Value(fieldNationality); ok {
		statement += d.T(", a national of "+nationality, ", de nacionalidad "+nationality)
	}
	statement += d.T(
		", solemnly declare that I will not carry out any work or professional activity in Spain during my residence under this visa.",
		", declaro bajo mi responsabilidad que no ejerceré ninguna actividad laboral o profesional en España durante mi residencia con este visado.")
	d.Paragraph(statement)

	var status string
	switch d.Choice(models.ProfileEmploymentStatus) {
	case "retired":
		status = d.T("I am retired and live on my pension.", "Estoy jubilado y vivo de mi pensión.")
	case "remote_employee":
		status = d.T("I am employed by a company based outside Spain.", "Trabajo para una empresa con sede fuera de España.")
		if src, ok := d.Value(fieldIncomeSource); ok {
			status = d.T("I am employed by "+src+", a company based outside Spain.",
				"Trabajo para "+src+", empresa con sede fuera de España.")
		}
	case "self_employed":
		status = d.T("I am self-employed and all my clients are outside Spain.",
			"Soy trabajador autónomo y todos mis clientes se encuentran fuera de España.")
		if src, ok := d.Value(fieldIncomeSource); ok {
			status = d.T("I am self-employed through "+src+" and all my clients are outside Spain.",
				"Soy trabajador autónomo a través de "+src+" y todos mis clientes se encuentran fuera de España.")
		}
	case "not_working":
		status = d.T("I do not currently work and live on my own means.",
			"Actualmente no trabajo y vivo de mis propios medios.")
	}
	d.Paragraph(status, d.T(
		"None of my income derives from a Spanish employer or from clients in Spain.",
		"Ninguno de mis ingresos procede de un empleador español ni de clientes en España."))

	d.Paragraph(d.T(
		"I am aware that providing false information may lead to the refusal or revocation of my visa.",
		"Soy consciente de que facilitar información falsa puede conllevar la denegación o revocación de mi visado."))

	d.Header(d.T("Signed in "+d.Get(fieldSigningPlace), "Firmado en "+d.Get(fieldSigningPlace)))
	d.Header(name)
	return nil
}
