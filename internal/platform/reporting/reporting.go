// Package reporting renders billing statements and prescriptions as PDF
// documents. Rendering is a pure transform: nothing is persisted, and
// callers are responsible for authorizing access to the source record.
package reporting

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/labstack/echo/v4"
)

// Party identifies the author or subject of a document.
type Party struct {
	Name  string
	Email string
}

const (
	pageMargin  = 15.0
	headerBand  = 35.0
	dateDisplay = "02 Jan 2006"
)

// compress is switched off in tests so rendered text can be inspected.
var compress = true

// document wraps a gofpdf page with the shared layout: a grey header band
// carrying the title, a doctor block with date and reference, and a
// disclaimer footer on every page.
type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDocument(title, footer string) *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetTitle(title, true)

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(153, 153, 153)
		pdf.CellFormat(0, 5, footer, "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	w, _ := pdf.GetPageSize()
	pdf.SetFillColor(246, 246, 246)
	pdf.Rect(0, 0, w, headerBand, "F")
	pdf.SetY(13)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(51, 51, 51)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetY(headerBand + 8)
	return d
}

// authorBlock prints the doctor on the left and the date and reference
// number on the right.
func (d *document) authorBlock(doctor Party, issued time.Time, refLabel, id string) {
	pdf := d.pdf
	y := pdf.GetY()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 102, 204)
	pdf.CellFormat(0, 8, d.tr("Dr. "+doctor.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 5, d.tr("Email: "+doctor.Email), "", 1, "L", false, 0, "")

	pdf.SetY(y)
	pdf.CellFormat(0, 5, "Date: "+issued.Format(dateDisplay), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 5, refLabel+" #: "+ShortRef(id), "", 1, "R", false, 0, "")
	pdf.SetY(y + 16)
	d.rule(204, 204, 204, 0.3)
	pdf.Ln(4)
}

func (d *document) rule(r, g, b int, width float64) {
	pdf := d.pdf
	w, _ := pdf.GetPageSize()
	pdf.SetDrawColor(r, g, b)
	pdf.SetLineWidth(width)
	pdf.Line(pageMargin, pdf.GetY(), w-pageMargin, pdf.GetY())
}

func (d *document) dashedRule() {
	d.pdf.SetDashPattern([]float64{1.5, 1}, 0)
	d.rule(204, 204, 204, 0.2)
	d.pdf.SetDashPattern([]float64{}, 0)
}

func (d *document) section(heading string) {
	pdf := d.pdf
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 102, 204)
	pdf.CellFormat(0, 8, heading, "", 1, "L", false, 0, "")
	d.rule(0, 102, 204, 0.4)
	pdf.Ln(3)
}

func (d *document) body(text string) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(51, 51, 51)
	pdf.MultiCell(0, 6, d.tr(text), "", "L", false)
}

func (d *document) muted(text string) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(102, 102, 102)
	pdf.MultiCell(0, 6, text, "", "L", false)
}

// tableHeader prints bold column headings followed by a rule.
func (d *document) tableHeader(widths []float64, headings ...string) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(51, 51, 51)
	for i, h := range headings {
		pdf.CellFormat(widths[i], 7, h, "", 0, "L", false, 0, "")
	}
	pdf.Ln(8)
	d.rule(51, 51, 51, 0.3)
	pdf.Ln(2)
}

// tableRow prints one row whose cells may wrap; the row is as tall as its
// tallest cell.
func (d *document) tableRow(widths []float64, cells ...string) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(51, 51, 51)

	const lineH = 5.5
	lines := 1
	for i, c := range cells {
		if n := len(pdf.SplitLines([]byte(d.tr(c)), widths[i]-2)); n > lines {
			lines = n
		}
	}
	h := float64(lines) * lineH
	_, pageH := pdf.GetPageSize()
	if pdf.GetY()+h > pageH-25 {
		pdf.AddPage()
	}

	x, y := pdf.GetX(), pdf.GetY()
	for i, c := range cells {
		pdf.SetXY(x, y)
		pdf.MultiCell(widths[i]-2, lineH, d.tr(c), "", "L", false)
		x += widths[i]
	}
	pdf.SetXY(pageMargin, y+h+1)
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ShortRef is the human-facing reference number printed on documents: the
// last six characters of the record id, upper-cased.
func ShortRef(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return strings.ToUpper(id)
}

// Attachment writes a rendered document as a file download.
func Attachment(c echo.Context, fileName string, doc []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", fileName))
	return c.Blob(http.StatusOK, "application/pdf", doc)
}
