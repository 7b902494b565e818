package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/export"
	"github.com/noah-isme/batchpass-api/pkg/storage"
)

type historyFixture struct {
	*settlementFixture
	history *PaymentHistoryService
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

func newHistoryFixture(t *testing.T) *historyFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("receipt_secret", time.Minute)
	f := newSettlementFixture()
	history := NewPaymentHistoryService(f.store, files, signer, export.NewCSVExporter(), export.NewReceiptRenderer("Batchpass Academy"), nil, nil,
		PaymentHistoryConfig{ReceiptBaseURL: "https://portal.test/api/v1/receipts/"})
	return &historyFixture{settlementFixture: f, history: history, files: files, signer: signer}
}

func (f *historyFixture) paid(t *testing.T, studentID string) *dto.CreateOrderResponse {
	t.Helper()
	order := f.order(t, studentID)
	_, err := f.settlement.VerifyAndSettle(context.Background(), studentID, callback(order, "pay_"+order.PaymentRecordID), models.RequestMeta{})
	require.NoError(t, err)
	return order
}

func TestPaymentHistoryListScopesToStudent(t *testing.T) {
	f := newHistoryFixture(t)
	f.order(t, "stu-1")
	f.paid(t, "stu-1")
	f.order(t, "stu-2")

	items, page, err := f.history.List(context.Background(), "stu-1", dto.PaymentHistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 2, page.TotalCount)
	for _, item := range items {
		assert.Equal(t, "stu-1", item.StudentID)
		assert.Equal(t, "JEE Physics", item.BatchName)
	}

	items, page, err = f.history.List(context.Background(), "stu-1", dto.PaymentHistoryQuery{Status: models.PaymentStatusSuccess})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.PaymentStatusSuccess, items[0].Status)
	assert.Equal(t, 1, page.TotalCount)

	items, _, err = f.history.List(context.Background(), "stu-3", dto.PaymentHistoryQuery{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestPaymentHistoryListRejectsBadQuery(t *testing.T) {
	f := newHistoryFixture(t)

	_, _, err := f.history.List(context.Background(), "stu-1", dto.PaymentHistoryQuery{Status: "lost"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = f.history.List(context.Background(), "stu-1", dto.PaymentHistoryQuery{PageSize: 500})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = f.history.List(context.Background(), "", dto.PaymentHistoryQuery{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestPaymentHistoryGetHidesOtherStudents(t *testing.T) {
	f := newHistoryFixture(t)
	order := f.order(t, "stu-1")

	detail, err := f.history.Get(context.Background(), "stu-1", order.PaymentRecordID)
	require.NoError(t, err)
	assert.Equal(t, order.Amount, detail.Amount)

	_, err = f.history.Get(context.Background(), "stu-2", order.PaymentRecordID)
	assert.True(t, appErrors.Is(err, appErrors.ErrPaymentRecordNotFound))

	_, err = f.history.Get(context.Background(), "stu-1", "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrPaymentRecordNotFound))
}

func TestPaymentHistoryExportCSV(t *testing.T) {
	f := newHistoryFixture(t)
	paid := f.paid(t, "stu-1")
	f.order(t, "stu-2")

	var buf bytes.Buffer
	require.NoError(t, f.history.ExportCSV(context.Background(), "stu-1", &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"payment_id", "batch", "amount", "currency", "status", "gateway_order_id", "gateway_payment_id", "created_at", "paid_at"}, rows[0])
	assert.Equal(t, paid.PaymentRecordID, rows[1][0])
	assert.Equal(t, "5898.82", rows[1][2])
	assert.Equal(t, "success", rows[1][4])
	assert.Equal(t, "pay_"+paid.PaymentRecordID, rows[1][6])
	assert.NotEmpty(t, rows[1][8])
}

func TestReceiptLinkRoundTrip(t *testing.T) {
	f := newHistoryFixture(t)
	order := f.paid(t, "stu-1")

	link, err := f.history.ReceiptLink(context.Background(), "stu-1", order.PaymentRecordID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "https://portal.test/api/v1/receipts/"))
	assert.WithinDuration(t, time.Now().Add(time.Minute), link.ExpiresAt, 2*time.Second)

	token := strings.TrimPrefix(link.URL, "https://portal.test/api/v1/receipts/")
	file, name, err := f.history.OpenReceipt(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, order.PaymentRecordID+".pdf", name)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestReceiptLinkRequiresSuccessfulPayment(t *testing.T) {
	f := newHistoryFixture(t)
	order := f.order(t, "stu-1")

	_, err := f.history.ReceiptLink(context.Background(), "stu-1", order.PaymentRecordID)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))

	paid := f.paid(t, "stu-1")
	_, err = f.history.ReceiptLink(context.Background(), "stu-2", paid.PaymentRecordID)
	assert.True(t, appErrors.Is(err, appErrors.ErrPaymentRecordNotFound))
}

type expiredSigner struct{ *storage.SignedURLSigner }

func (expiredSigner) Parse(string) (string, string, error) {
	return "", "", storage.ErrTokenExpired
}

func TestOpenReceiptRejectsBadTokens(t *testing.T) {
	f := newHistoryFixture(t)

	_, _, err := f.history.OpenReceipt(context.Background(), "garbage")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	// A validly signed token that points outside the owner's folder.
	token, _, err := f.signer.Generate("stu-1", "receipts/stu-2/other.pdf")
	require.NoError(t, err)
	_, _, err = f.history.OpenReceipt(context.Background(), token)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	// Signed and scoped but the file was cleaned up.
	token, _, err = f.signer.Generate("stu-1", "receipts/stu-1/gone.pdf")
	require.NoError(t, err)
	_, _, err = f.history.OpenReceipt(context.Background(), token)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "request a new link")

	f.history.signer = expiredSigner{f.signer}
	_, _, err = f.history.OpenReceipt(context.Background(), "anything")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, "receipt link expired", appErr.Message)
}

func TestCleanupReceipts(t *testing.T) {
	f := newHistoryFixture(t)
	order := f.paid(t, "stu-1")
	_, err := f.history.ReceiptLink(context.Background(), "stu-1", order.PaymentRecordID)
	require.NoError(t, err)

	removed, err := f.history.CleanupReceipts(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = f.history.CleanupReceipts(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestReceiptForBreaksDownTax(t *testing.T) {
	svc := NewPaymentHistoryService(nil, nil, nil, nil, nil, nil, nil, PaymentHistoryConfig{})
	paidAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	receipt := svc.receiptFor(&models.PaymentDetail{
		PaymentRecord: models.PaymentRecord{
			ID: "pay-1", BatchID: "batch-1", Amount: 589882, Currency: "INR", TaxRateBps: 1800, PaidAt: &paidAt,
			BillingInfo: models.BillingInfo{Name: "Asha", Email: "asha@example.com", Phone: "9999999999"},
		},
		BatchName: "JEE Physics",
	})

	assert.Equal(t, "JEE Physics", receipt.Item)
	assert.Equal(t, paidAt, receipt.IssuedAt)
	assert.Equal(t, "4999.00 INR", receipt.ItemAmount)
	require.Len(t, receipt.Lines, 1)
	assert.Equal(t, "Tax (18%)", receipt.Lines[0].Label)
	assert.Equal(t, "899.82 INR", receipt.Lines[0].Amount)
	assert.Equal(t, "5898.82 INR", receipt.Total)
}

func TestReceiptKeepsTaxRateFromOrderTime(t *testing.T) {
	ctx := context.Background()
	f := newHistoryFixture(t)
	early := f.paid(t, "stu-1")

	repriced := NewOrderService(NewCatalogService(f.store, nil, 0, nil), f.store, f.store, &fakeGateway{}, nil, nil, nil,
		OrderConfig{TaxRateBps: 500, DefaultCurrency: "INR"})
	late, err := repriced.CreateOrder(ctx, "stu-2", orderRequest("batch-1"), models.RequestMeta{})
	require.NoError(t, err)
	_, err = f.settlement.VerifyAndSettle(ctx, "stu-2", callback(late, "pay_"+late.PaymentRecordID), models.RequestMeta{})
	require.NoError(t, err)

	cases := []struct {
		studentID string
		recordID  string
		item      string
		taxLabel  string
		tax       string
		total     string
	}{
		{"stu-1", early.PaymentRecordID, "4999.00 INR", "Tax (18%)", "899.82 INR", "5898.82 INR"},
		{"stu-2", late.PaymentRecordID, "4999.00 INR", "Tax (5%)", "249.95 INR", "5248.95 INR"},
	}
	for _, tc := range cases {
		detail, err := f.history.Get(ctx, tc.studentID, tc.recordID)
		require.NoError(t, err)
		receipt := f.history.receiptFor(detail)
		assert.Equal(t, tc.item, receipt.ItemAmount)
		require.Len(t, receipt.Lines, 1)
		assert.Equal(t, tc.taxLabel, receipt.Lines[0].Label)
		assert.Equal(t, tc.tax, receipt.Lines[0].Amount)
		assert.Equal(t, tc.total, receipt.Total)
	}
}
