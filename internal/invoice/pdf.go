package invoice

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"unicode"

	"github.com/go-pdf/fpdf"
)

const fontFamily = "DejaVu"

var (
	//go:embed fonts/DejaVuSans.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSans-Bold.ttf
	fontBold []byte
)

// Renderer turns a document into the bytes of a PDF file.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

type rgb struct{ r, g, b int }

var (
	colorInk    = rgb{38, 38, 38}
	colorMuted  = rgb{115, 115, 115}
	colorBrand  = rgb{229, 0, 86}
	colorPaid   = rgb{22, 163, 74}
	colorUnpaid = rgb{249, 115, 22}
	colorRule   = rgb{245, 245, 245}
)

// PDFRenderer draws the invoice directly with fpdf using an embedded UTF-8 font, so
// Latin and Arabic customer fields print as written. Arabic values are laid out right to
// left in their isolated letter forms; fpdf does not shape joined script.
type PDFRenderer struct {
	Brand string
}

func (r PDFRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetCatalogSort(true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", fontBold)

	pdf.SetTitle("Invoice "+doc.OrderID, true)
	if r.Brand != "" {
		pdf.SetAuthor(r.Brand, true)
	}
	pdf.AddPage()

	// header
	setText(pdf, colorBrand)
	pdf.SetFont(fontFamily, "B", 14)
	pdf.CellFormat(85, 12, r.Brand, "", 0, "L", false, 0, "")
	setText(pdf, colorInk)
	pdf.SetFont(fontFamily, "B", 28)
	pdf.CellFormat(85, 12, "Invoice", "", 1, "R", false, 0, "")
	pdf.Ln(4)

	setText(pdf, colorBrand)
	pdf.SetFont(fontFamily, "B", 18)
	pdf.CellFormat(0, 10, "Order ID: "+doc.OrderID, "", 1, "C", false, 0, "")
	setText(pdf, colorMuted)
	pdf.SetFont(fontFamily, "", 11)
	pdf.CellFormat(0, 6, "Date: "+doc.InvoiceDate, "", 1, "C", false, 0, "")
	rule(pdf, colorInk, 0.6)

	setText(pdf, colorInk)
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, "Order Details", "", 1, "L", false, 0, "")

	section(pdf, "Customer", [][2]string{
		{"Customer:", doc.CustomerName},
		{"Email:", doc.CustomerEmail},
		{"Phone:", doc.CustomerPhone},
		{"Location:", doc.Location},
	})
	section(pdf, "Service", [][2]string{
		{"Package:", doc.Package},
		{"Service Date:", doc.ServiceDate},
		{"Time:", doc.ServiceTime},
		{"Hours:", doc.Hours},
	})
	section(pdf, "Pricing", [][2]string{
		{"Price:", doc.Price},
	})

	rule(pdf, colorRule, 0.3)
	setText(pdf, colorInk)
	pdf.SetFont(fontFamily, "B", 13)
	pdf.CellFormat(45, 9, "Total:", "", 0, "L", false, 0, "")
	setText(pdf, colorBrand)
	pdf.CellFormat(0, 9, doc.Total, "", 1, "L", false, 0, "")

	setText(pdf, colorInk)
	pdf.SetFont(fontFamily, "B", 11)
	pdf.CellFormat(45, 8, "Payment Status:", "", 0, "L", false, 0, "")
	if doc.Paid {
		setText(pdf, colorPaid)
	} else {
		setText(pdf, colorUnpaid)
	}
	value(pdf, 8, doc.PaymentStatus)

	if pdf.Err() {
		return nil, fmt.Errorf("draw invoice: %w", pdf.Error())
	}
	// Output embeds the font subset and is the slow step.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("encode invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, title string, rows [][2]string) {
	pdf.Ln(2)
	setText(pdf, colorMuted)
	pdf.SetFont(fontFamily, "B", 9)
	pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
	for _, row := range rows {
		setText(pdf, colorInk)
		pdf.SetFont(fontFamily, "B", 11)
		pdf.CellFormat(45, 7, row[0], "", 0, "L", false, 0, "")
		setText(pdf, colorMuted)
		pdf.SetFont(fontFamily, "", 11)
		value(pdf, 7, row[1])
	}
}

// value prints s to the end of the line, switching to right-to-left for Arabic text.
func value(pdf *fpdf.Fpdf, h float64, s string) {
	if !hasArabic(s) {
		pdf.MultiCell(0, h, s, "", "L", false)
		return
	}
	pdf.RTL()
	pdf.MultiCell(0, h, s, "", "R", false)
	pdf.LTR()
}

func hasArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

func rule(pdf *fpdf.Fpdf, c rgb, width float64) {
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	y := pdf.GetY() + 3
	pdf.SetDrawColor(c.r, c.g, c.b)
	pdf.SetLineWidth(width)
	pdf.Line(left, y, pageW-right, y)
	pdf.SetY(y + 4)
}

func setText(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}
