package rendering

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
)

// RenderPDF renders the document as an A4 PDF.
func RenderPDF(d *Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(d.Title(), true)
	// core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(108, 117, 125)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 102, 204)
	pdf.MultiCell(0, 10, tr(d.Title()), "", "L", false)
	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(108, 117, 125)
	pdf.CellFormat(0, 8, tr(d.ReportType.Subtitle()), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Generated: "+d.GeneratedAt.UTC().Format(time.RFC1123), "", 1, "L", false, 0, "")

	for _, s := range d.Sections {
		blocks, err := Blocks(s.Content)
		if err != nil {
			return nil, &RenderError{Format: FormatPDF, Section: s.Title, Cause: err}
		}
		addSectionHeader(pdf, tr(s.Title))
		for _, b := range blocks {
			switch b.Kind {
			case BlockHeading:
				pdf.SetFont("Arial", "B", 12)
				pdf.SetTextColor(33, 37, 41)
				pdf.MultiCell(0, 6, tr(b.Text), "", "L", false)
			case BlockItem:
				pdf.SetFont("Arial", "", 11)
				pdf.SetTextColor(33, 37, 41)
				pdf.SetX(20)
				pdf.MultiCell(0, 5.5, tr("- "+b.Text), "", "L", false)
			default:
				pdf.SetFont("Arial", "", 11)
				pdf.SetTextColor(33, 37, 41)
				pdf.MultiCell(0, 5.5, tr(b.Text), "", "L", false)
			}
			pdf.Ln(2)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Format: FormatPDF, Cause: err}
	}
	return buf.Bytes(), nil
}

func addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(8)
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.MultiCell(0, 8, title, "", "L", false)

	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(0, 102, 204)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(4)
}
