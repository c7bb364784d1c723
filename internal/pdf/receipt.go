package pdf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"ozergarant/internal/models"
	"ozergarant/internal/utils"
)

// ReceiptGenerator renders a one-page deal receipt.
type ReceiptGenerator struct {
	FontPath string // TTF с кириллицей; пусто — Helvetica
	fontName string
}

func NewReceiptGenerator(fontPath string) *ReceiptGenerator {
	name := "Helvetica"
	if fontPath != "" {
		name = "DejaVu"
	}
	return &ReceiptGenerator{FontPath: fontPath, fontName: name}
}

// Write renders the receipt for d into w. generatedAt goes into the footer.
func (g *ReceiptGenerator) Write(w io.Writer, d *models.Deal, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Deal receipt #"+d.Code, true)
	pdf.SetAuthor("OZER GARANT", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	if g.FontPath != "" {
		pdf.AddUTF8Font(g.fontName, "", g.FontPath)
		pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
	}
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "OZER GARANT", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 12)
	pdf.CellFormat(0, 7, "Deal receipt #"+d.Code, "", 1, "C", false, 0, "")
	g.hr(pdf)

	g.sectionTitle(pdf, "Deal")
	g.kvLine(pdf, "Code", d.Code)
	g.kvLine(pdf, "Status", string(d.Status))
	g.kvLine(pdf, "Amount", utils.FormatUSD(d.AmountUSD))
	method := "-"
	if d.PaymentMethod != nil {
		method = string(*d.PaymentMethod)
	}
	g.kvLine(pdf, "Payment method", method)
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Parties")
	g.kvLine(pdf, "Creator", fmt.Sprintf("%d (%s)", d.CreatorID, d.CreatorRole))
	participant := "-"
	if d.ParticipantID != nil {
		participant = fmt.Sprintf("%d (%s)", *d.ParticipantID, d.CreatorRole.Counterpart())
	}
	g.kvLine(pdf, "Participant", participant)
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Terms")
	pdf.MultiCell(0, 6, g.text(d.Terms), "", "L", false)
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Timeline")
	g.kvLine(pdf, "Created", d.CreatedAt.UTC().Format(time.RFC3339))
	g.kvLine(pdf, "Expires", d.ExpiresAt.UTC().Format(time.RFC3339))
	if d.CompletedAt != nil {
		g.kvLine(pdf, "Completed", d.CompletedAt.UTC().Format(time.RFC3339))
	}
	if d.PaymentProof != nil && *d.PaymentProof != "" {
		g.kvLine(pdf, "Payer note", *d.PaymentProof)
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10, "Generated "+generatedAt.UTC().Format(time.RFC3339)+
			". Payment is self-attested by the payer and not verified on-chain.", "", 0, "C", false, 0, "")
	})

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render receipt %s: %w", d.Code, err)
	}
	return nil
}

func (g *ReceiptGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ReceiptGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, g.text(val), "", 1, "L", false, 0, "")
}

func (g *ReceiptGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

// text — встроенный шрифт понимает только latin-1, остальное заменяем.
func (g *ReceiptGenerator) text(s string) string {
	if g.FontPath != "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r > 0xFF {
			return '?'
		}
		return r
	}, s)
}
