package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// RenderPDF writes slip as a one-page A4 PDF.
func RenderPDF(w io.Writer, slip *Payslip) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; labels carry accents.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, tr("Nómina"))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Empleado: %s (%s)", slip.Employee.Name, slip.Employee.ID)))
	pdf.Ln(6)
	if slip.Employee.CostCenter != "" {
		pdf.Cell(0, 7, tr(fmt.Sprintf("Centro de coste: %s", slip.Employee.CostCenter)))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, tr(fmt.Sprintf("Periodo: %s", slip.Period)))
	pdf.Ln(6)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Jornada: %s%%", slip.Projection.FTE.StringFixed(2))))
	pdf.Ln(10)

	section(pdf, tr, "Devengos", slip.Earnings)
	section(pdf, tr, "Deducciones", slip.Deductions)

	pdf.SetFont("Helvetica", "B", 11)
	total(pdf, tr, "Total devengado", slip.Gross)
	total(pdf, tr, "Total deducciones", slip.TotalDeductions)
	total(pdf, tr, "Líquido a percibir", slip.Net)

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 5, fmt.Sprintf("Generado %s", slip.GeneratedAt.Format("2006-01-02 15:04 MST")))

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render payslip: %w", err)
	}
	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, title string, lines []Line) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr(title))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	if len(lines) == 0 {
		pdf.Cell(0, 6, "-")
		pdf.Ln(8)
		return
	}
	for _, l := range lines {
		pdf.CellFormat(110, 6, tr(l.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, l.Amount.StringFixed(2), "", 0, "R", false, 0, "")
		if !l.CarriedIn.IsZero() || !l.CarriedOut.IsZero() {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, 6, fmt.Sprintf("  +%s / -%s", l.CarriedIn.StringFixed(2), l.CarriedOut.StringFixed(2)), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.Ln(6)
	}
	pdf.Ln(4)
}

func total(pdf *gofpdf.Fpdf, tr func(string) string, label string, amount decimal.Decimal) {
	pdf.CellFormat(110, 7, tr(label), "T", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, amount.StringFixed(2), "T", 0, "R", false, 0, "")
	pdf.Ln(7)
}
