// Package render turns document descriptions into downloadable files.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/jung-kurt/gofpdf"
)

// Format is an export file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Export renders desc in the given format. An empty format means PDF.
func Export(desc *models.DocumentDescription, format Format) (*File, error) {
	base := desc.Type
	if base == "" {
		base = "document"
	}
	switch format {
	case FormatPDF, "":
		data, err := PDF(desc)
		if err != nil {
			return nil, err
		}
		return &File{Name: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	case FormatText:
		return &File{Name: base + ".txt", ContentType: "text/plain; charset=utf-8", Data: []byte(Text(desc))}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// statusLabel is the text marker printed before a checklist item.
func statusLabel(s models.ItemStatus) string {
	switch s {
	case models.StatusOK:
		return "[OK]"
	case models.StatusWarning:
		return "[!]"
	case models.StatusFail:
		return "[X]"
	case models.StatusUnclear:
		return "[?]"
	default:
		return "[ ]"
	}
}

// PDF renders desc as an A4 PDF. Text is translated to the core font code
// page, so characters outside cp1252 are dropped.
func PDF(desc *models.DocumentDescription) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(desc.Title, true)
	pdf.SetCreator("DossierPipe", true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(desc.Title), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 11)

	for _, s := range desc.Sections {
		switch s.Kind {
		case models.SectionHeader:
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 6, tr(s.Text), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
			pdf.Ln(1)
		case models.SectionParagraph:
			pdf.MultiCell(0, 5.5, tr(s.Text), "", "J", false)
			pdf.Ln(3)
		case models.SectionTable:
			writeTable(pdf, tr, s)
		case models.SectionChecklist:
			if s.Heading != "" {
				pdf.SetFont("Helvetica", "B", 12)
				pdf.CellFormat(0, 8, tr(s.Heading), "", 1, "L", false, 0, "")
				pdf.SetFont("Helvetica", "", 11)
			}
			for _, it := range s.Items {
				line := statusLabel(it.Status) + " " + it.Label
				if it.Detail != "" {
					line += ": " + it.Detail
				}
				pdf.MultiCell(0, 5.5, tr(line), "", "L", false)
			}
			pdf.Ln(3)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(pdf *gofpdf.Fpdf, tr func(string) string, s models.Section) {
	if s.Heading != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr(s.Heading), "", 1, "L", false, 0, "")
	}
	cols := len(s.Columns)
	if cols == 0 {
		return
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	w := (pageW - left - right) / float64(cols)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, c := range s.Columns {
		pdf.CellFormat(w, 7, tr(c), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range s.Rows {
		for i := 0; i < cols; i++ {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			align := "L"
			if i > 0 {
				align = "R"
			}
			pdf.CellFormat(w, 7, tr(cell), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.Ln(3)
}

// Text renders desc as plain text with markdown-style headings, tables and
// checklists.
func Text(desc *models.DocumentDescription) string {
	var sb strings.Builder
	sb.WriteString("# " + desc.Title + "\n\n")
	for _, s := range desc.Sections {
		switch s.Kind {
		case models.SectionHeader:
			sb.WriteString(s.Text + "\n\n")
		case models.SectionParagraph:
			sb.WriteString(s.Text + "\n\n")
		case models.SectionTable:
			if s.Heading != "" {
				sb.WriteString("## " + s.Heading + "\n\n")
			}
			sb.WriteString("| " + strings.Join(s.Columns, " | ") + " |\n")
			sb.WriteString("|" + strings.Repeat(" --- |", len(s.Columns)) + "\n")
			for _, row := range s.Rows {
				sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
			}
			sb.WriteString("\n")
		case models.SectionChecklist:
			if s.Heading != "" {
				sb.WriteString("## " + s.Heading + "\n\n")
			}
			for _, it := range s.Items {
				sb.WriteString("- " + statusLabel(it.Status) + " " + it.Label)
				if it.Detail != "" {
					sb.WriteString(": " + it.Detail)
				}
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
