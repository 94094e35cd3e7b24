package notify

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
)

type PDFRenderer struct {
	business string
}

func NewPDFRenderer(business string) *PDFRenderer {
	return &PDFRenderer{business: business}
}

func (p *PDFRenderer) Render(r *models.Receipt) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil receipt")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt "+r.OrderID, false)
	pdf.SetAuthor(p.business, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, p.business, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 16)
	pdf.CellFormat(0, 10, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	for _, l := range receiptLines(r) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(40, 8, l[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, l[1], "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
