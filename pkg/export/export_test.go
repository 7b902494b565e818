package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	buf := &bytes.Buffer{}
	err := NewCSVExporter().Render(buf, Dataset{
		Headers: []string{"id", "batch"},
		Rows: []map[string]string{
			{"id": "pay-1", "batch": "JEE, Physics"},
			{"id": "pay-2", "batch": "=HYPERLINK(\"x\")"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,batch\npay-1,\"JEE, Physics\"\npay-2,\"'=HYPERLINK(\"\"x\"\")\"\n", buf.String())
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	err := NewCSVExporter().Render(&bytes.Buffer{}, Dataset{})
	assert.Error(t, err)
}

func TestReceiptRendererRender(t *testing.T) {
	pdf, err := NewReceiptRenderer("").Render(Receipt{
		Number:     "pay-1",
		IssuedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		BilledTo:   "Asha",
		Item:       "JEE Physics",
		ItemAmount: "4999.00 INR",
		Lines:      []ReceiptLine{{Label: "Tax", Amount: "899.82 INR"}},
		Total:      "5898.82 INR",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = NewReceiptRenderer("").Render(Receipt{})
	assert.Error(t, err)
}
