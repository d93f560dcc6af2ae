package assemble

import (
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/models"
)

// incomeSources maps an income_sources value to the answer holding its
// monthly amount.
var incomeSources = map[string]string{
	"pension":     "pension_monthly",
	"salary":      "salary_monthly",
	"investments": "investment_monthly",
	"rental":      "rental_monthly",
}

var fieldBank = Field{Key: "bank_name"}

var financialStatementTemplate = Template{
	Title: map[string]string{
		"en": "Statement of financial means",
		"es": "Declaración de medios económicos",
	},
	Render: renderFinancialStatement,
}

func renderFinancialStatement(d *Draft) error {
	name := d.Get(fieldFullName)
	if name == "" {
		name = d.T("The applicant", "El solicitante")
	}
	for _, f := range []Field{fieldFullName, fieldPassport, fieldDateOfBirth, fieldAddress} {
		if v, ok := d.Value(f); ok {
			d.Header(v)
		}
	}

	d.Paragraph(d.T(
		name+" declares the following sources of regular income and available funds in support of the visa application.",
		name+" declara las siguientes fuentes de ingresos periódicos y fondos disponibles en apoyo de su solicitud de visado."))

	var rows [][]string
	var monthly float64
	for _, source := range d.List("income_sources") {
		key, ok := incomeSources[source]
		if !ok {
			continue
		}
		amount, ok := d.Amount(Field{Key: key})
		if !ok {
			continue
		}
		monthly += amount
		label := d.OptionLabel(models.FlowFinancialStatement, "income_sources", source)
		rows = append(rows, []string{label, d.Money(amount), d.Money(amount * 12)})
	}
	if len(rows) == 0 {
		if amount, ok := d.Amount(Field{ProfileKey: models.ProfileMonthlyIncome}); ok {
			monthly = amount
			rows = append(rows, []string{d.T("Declared income", "Ingresos declarados"), d.Money(amount), d.Money(amount * 12)})
		}
	}
	if len(rows) > 0 {
		rows = append(rows, []string{d.T("Total", "Total"), d.Money(monthly), d.Money(monthly * 12)})
		d.Table(d.T("Income", "Ingresos"),
			[]string{d.T("Source", "Fuente"), d.T("Monthly", "Mensual"), d.T("Annual", "Anual")},
			rows)
	}

	savings, hasSavings := d.Amount(fieldSavings)
	if hasSavings {
		held := d.T("Savings of "+d.Money(savings)+" are held", "Se dispone de ahorros por valor de "+d.Money(savings))
		if bank, ok := d.Value(fieldBank); ok {
			held += d.T(" at "+bank, " depositados en "+bank)
		}
		d.Paragraph(held + ".")
	}

	if item, ok := thresholdItem(d, monthly, savings); ok {
		d.Checklist(d.T("Financial requirement", "Requisito económico"), []models.ChecklistItem{item})
	}

	d.Paragraph(d.T(
		"I declare that the information above is true and that I can provide bank statements on request.",
		"Declaro que la información anterior es veraz y que puedo aportar extractos bancarios si se me solicitan."))
	d.Header(name)
	return nil
}

// thresholdItem compares the declared means with the monthly requirement:
// the IPREM multiple for the main applicant plus one multiple per dependant.
// The requirement is met either by monthly income or by a full year of
// income and savings together.
func thresholdItem(d *Draft, monthly, savings float64) (models.ChecklistItem, bool) {
	th := d.Snapshot(kb.TopicThresholds)
	iprem, ok := th.Float("iprem_monthly")
	if !ok || iprem <= 0 {
		return models.ChecklistItem{}, false
	}
	main, ok := th.Float("main_multiplier")
	if !ok {
		main = 4
	}
	dep, ok := th.Float("dependent_multiplier")
	if !ok {
		dep = 1
	}
	required := iprem*main + iprem*dep*float64(d.dependentCount())

	item := models.ChecklistItem{
		Label: d.T("Monthly requirement: "+d.Money(required), "Requisito mensual: "+d.Money(required)),
	}
	switch {
	case monthly >= required:
		item.Status = models.StatusOK
		item.Detail = d.T("Covered by monthly income of "+d.Money(monthly)+".",
			"Cubierto por ingresos mensuales de "+d.Money(monthly)+".")
	case monthly*12+savings >= required*12:
		item.Status = models.StatusOK
		item.Detail = d.T("Covered for twelve months by income and savings.",
			"Cubierto durante doce meses con ingresos y ahorros.")
	default:
		item.Status = models.StatusWarning
		item.Detail = d.T("Declared means of "+d.Money(monthly*12+savings)+" fall short of the annual "+d.Money(required*12)+".",
			"Los medios declarados de "+d.Money(monthly*12+savings)+" no alcanzan el requisito anual de "+d.Money(required*12)+".")
	}
	return item, true
}
