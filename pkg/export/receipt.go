package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptLine is one priced row on a receipt. Amounts are preformatted.
type ReceiptLine struct {
	Label  string
	Amount string
}

// Receipt is the content of a payment receipt.
type Receipt struct {
	Number           string
	IssuedAt         time.Time
	BilledTo         string
	Email            string
	Phone            string
	Item             string
	ItemAmount       string
	Lines            []ReceiptLine
	Total            string
	GatewayOrderID   string
	GatewayPaymentID string
}

// ReceiptRenderer renders receipts as single page A4 PDFs.
type ReceiptRenderer struct {
	issuer string
}

// NewReceiptRenderer constructs a renderer printing issuer in the header.
func NewReceiptRenderer(issuer string) *ReceiptRenderer {
	if issuer == "" {
		issuer = "BatchPass"
	}
	return &ReceiptRenderer{issuer: issuer}
}

// Render produces the PDF bytes.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.Number == "" {
		return nil, fmt.Errorf("receipt number required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+receipt.Number, true)
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(r.issuer), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, "Payment receipt", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	meta := [][2]string{
		{"Receipt no.", receipt.Number},
		{"Date", receipt.IssuedAt.UTC().Format("02 Jan 2006 15:04 MST")},
		{"Billed to", receipt.BilledTo},
		{"Email", receipt.Email},
		{"Phone", receipt.Phone},
		{"Order", receipt.GatewayOrderID},
		{"Payment", receipt.GatewayPaymentID},
	}
	for _, row := range meta {
		if row[1] == "" {
			continue
		}
		pdf.CellFormat(35, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(130, 8, "Description", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, "Amount", "1", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(130, 8, tr(receipt.Item), "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, receipt.ItemAmount, "1", 1, "R", false, 0, "")
	for _, line := range receipt.Lines {
		pdf.CellFormat(130, 8, tr(line.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 8, line.Amount, "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(130, 8, "Total paid", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, receipt.Total, "1", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
