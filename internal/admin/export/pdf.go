package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfFont   = "Arial"
	pdfMargin = 15.0
)

// WritePDF renders the tables one after another on A4 portrait pages.
func WritePDF(w io.Writer, title string, generatedAt time.Time, tables []Table) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 20, pdfMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, "Generated: "+generatedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "R", false, 0, "")

	for _, t := range tables {
		pdf.Ln(6)
		pdf.SetFont(pdfFont, "B", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 8, t.Name, "", 1, "L", false, 0, "")
		writeTable(pdf, t)
	}

	return pdf.Output(w)
}

func writeTable(pdf *gofpdf.Fpdf, t Table) {
	pageWidth, pageHeight := pdf.GetPageSize()
	width := (pageWidth - 2*pdfMargin) / float64(len(t.Columns))

	header := func() {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		for _, label := range t.labels() {
			pdf.CellFormat(width, 8, label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", 9)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	if len(t.Rows) == 0 {
		pdf.CellFormat(width*float64(len(t.Columns)), 7, "No data", "1", 1, "C", false, 0, "")
		return
	}

	for i, row := range t.Rows {
		if pdf.GetY()+8 > pageHeight-20 {
			pdf.AddPage()
			header()
		}
		if i%2 == 1 {
			pdf.SetFillColor(242, 242, 242)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for _, c := range t.Columns {
			pdf.CellFormat(width, 7, fit(pdf, formatValue(row[c.Key], "2006-01-02 15:04"), width-2), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}
}

// fit truncates s with an ellipsis until it renders within width.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
