package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/gateway"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
)

type settlementFixture struct {
	store       *memStore
	orders      *OrderService
	settlement  *SettlementService
	entitlement *EntitlementService
	queue       *fakeEnqueuer
}

func newSettlementFixture() *settlementFixture {
	store := newMemStore()
	seedCatalog(store)
	catalog := NewCatalogService(store, nil, 0, nil)
	queue := &fakeEnqueuer{}
	return &settlementFixture{
		store:       store,
		orders:      NewOrderService(catalog, store, store, &fakeGateway{}, nil, nil, nil, OrderConfig{TaxRateBps: 1800}),
		settlement:  NewSettlementService(store, store, queue, testSigningSecret, nil, nil, nil),
		entitlement: NewEntitlementService(catalog, store, nil),
		queue:       queue,
	}
}

func (f *settlementFixture) order(t *testing.T, studentID string) *dto.CreateOrderResponse {
	t.Helper()
	resp, err := f.orders.CreateOrder(context.Background(), studentID, orderRequest("batch-1"), models.RequestMeta{})
	require.NoError(t, err)
	return resp
}

// callback simulates what the gateway hands back to the browser after a successful charge.
func callback(order *dto.CreateOrderResponse, paymentID string) dto.VerifyPaymentRequest {
	return dto.VerifyPaymentRequest{
		PaymentRecordID:  order.PaymentRecordID,
		GatewayOrderID:   order.OrderID,
		GatewayPaymentID: paymentID,
		GatewaySignature: gateway.Sign(testSigningSecret, gateway.SignaturePayload{
			OrderID:   order.OrderID,
			PaymentID: paymentID,
			Amount:    order.Amount,
			Currency:  order.Currency,
		}),
	}
}

func TestEnrollFlowUnlocksBatch(t *testing.T) {
	f := newSettlementFixture()
	ctx := context.Background()
	path := models.ResourcePath{BatchID: "batch-1", SubjectID: "subj-1", ChapterID: "ch-1"}

	before, err := f.entitlement.Evaluate(ctx, "stu-1", path)
	require.NoError(t, err)
	assert.Equal(t, models.LockReasonNotEnrolled, before.Reason)

	order := f.order(t, "stu-1")
	resp, err := f.settlement.VerifyAndSettle(ctx, "stu-1", callback(order, "pay_gw_1"), models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.EnrollmentID)
	assert.False(t, resp.Replayed)

	after, err := f.entitlement.Evaluate(ctx, "stu-1", path)
	require.NoError(t, err)
	assert.True(t, after.Unlocked)

	record := f.store.payment(order.PaymentRecordID)
	assert.Equal(t, models.PaymentStatusSuccess, record.Status)
	require.NotNil(t, record.SignatureVerified)
	assert.True(t, *record.SignatureVerified)
	assert.Equal(t, resp.EnrollmentID, *record.EnrollmentID)
	assert.NotNil(t, record.PaidAt)
}

func TestVerifyAndSettleIsIdempotent(t *testing.T) {
	f := newSettlementFixture()
	order := f.order(t, "stu-1")
	req := callback(order, "pay_gw_1")

	first, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", req, models.RequestMeta{})
	require.NoError(t, err)

	// A replay skips verification, so even a garbled signature returns the stored enrollment.
	req.GatewaySignature = "00"
	second, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", req, models.RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, first.EnrollmentID, second.EnrollmentID)
	assert.True(t, second.Replayed)
	assert.Equal(t, 1, f.store.enrollmentCount())
}

func TestVerifyAndSettleRejectsTamperedCallbacks(t *testing.T) {
	cases := map[string]func(order *dto.CreateOrderResponse) dto.VerifyPaymentRequest{
		"amount changed": func(order *dto.CreateOrderResponse) dto.VerifyPaymentRequest {
			tampered := *order
			tampered.Amount = 100
			return callback(&tampered, "pay_gw_1")
		},
		"currency changed": func(order *dto.CreateOrderResponse) dto.VerifyPaymentRequest {
			tampered := *order
			tampered.Currency = "USD"
			return callback(&tampered, "pay_gw_1")
		},
		"payment id swapped": func(order *dto.CreateOrderResponse) dto.VerifyPaymentRequest {
			req := callback(order, "pay_gw_1")
			req.GatewayPaymentID = "pay_gw_2"
			return req
		},
		"order id swapped": func(order *dto.CreateOrderResponse) dto.VerifyPaymentRequest {
			tampered := *order
			tampered.OrderID = "order_other"
			return callback(&tampered, "pay_gw_1")
		},
		"signature flipped": func(order *dto.CreateOrderResponse) dto.VerifyPaymentRequest {
			req := callback(order, "pay_gw_1")
			last := req.GatewaySignature[len(req.GatewaySignature)-1]
			flipped := byte('0')
			if last == '0' {
				flipped = '1'
			}
			req.GatewaySignature = req.GatewaySignature[:len(req.GatewaySignature)-1] + string(flipped)
			return req
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			f := newSettlementFixture()
			order := f.order(t, "stu-1")

			_, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", build(order), models.RequestMeta{})
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrVerificationFailed))

			record := f.store.payment(order.PaymentRecordID)
			assert.Equal(t, models.PaymentStatusFailed, record.Status)
			require.NotNil(t, record.SignatureVerified)
			assert.False(t, *record.SignatureVerified)
			assert.Zero(t, f.store.enrollmentCount())

			decision, err := f.entitlement.Evaluate(context.Background(), "stu-1", models.ResourcePath{BatchID: "batch-1"})
			require.NoError(t, err)
			assert.False(t, decision.Unlocked)

			// The attempt is closed; even a genuine callback cannot revive it.
			_, err = f.settlement.VerifyAndSettle(context.Background(), "stu-1", callback(order, "pay_gw_1"), models.RequestMeta{})
			assert.True(t, appErrors.Is(err, appErrors.ErrVerificationFailed))
		})
	}
}

func TestVerifyAndSettleHidesOtherStudentsRecords(t *testing.T) {
	f := newSettlementFixture()
	order := f.order(t, "stu-1")

	_, err := f.settlement.VerifyAndSettle(context.Background(), "stu-2", callback(order, "pay_gw_1"), models.RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrPaymentRecordNotFound))
	assert.Equal(t, models.PaymentStatusPending, f.store.payment(order.PaymentRecordID).Status)

	_, err = f.settlement.VerifyAndSettle(context.Background(), "stu-1", dto.VerifyPaymentRequest{
		PaymentRecordID: "missing", GatewayOrderID: "o", GatewayPaymentID: "p", GatewaySignature: "ab",
	}, models.RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrPaymentRecordNotFound))
}

func TestVerifyAndSettleValidatesPayload(t *testing.T) {
	f := newSettlementFixture()
	_, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", dto.VerifyPaymentRequest{PaymentRecordID: "x"}, models.RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.settlement.VerifyAndSettle(context.Background(), "", dto.VerifyPaymentRequest{}, models.RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestConcurrentSettlementProducesOneEnrollment(t *testing.T) {
	f := newSettlementFixture()
	order := f.order(t, "stu-1")
	req := callback(order, "pay_gw_1")

	const workers = 16
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", req, models.RequestMeta{})
			errs[i] = err
			if resp != nil {
				ids[i] = resp.EnrollmentID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.store.enrollmentCount())
}

func TestTwoPaidOrdersShareOneEnrollment(t *testing.T) {
	f := newSettlementFixture()
	first := f.order(t, "stu-1")
	second := f.order(t, "stu-1")

	var wg sync.WaitGroup
	results := make([]*dto.VerifyPaymentResponse, 2)
	for i, order := range []*dto.CreateOrderResponse{first, second} {
		wg.Add(1)
		go func(i int, order *dto.CreateOrderResponse) {
			defer wg.Done()
			resp, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", callback(order, "pay_gw_"+order.PaymentRecordID), models.RequestMeta{})
			assert.NoError(t, err)
			results[i] = resp
		}(i, order)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, results[0].EnrollmentID, results[1].EnrollmentID)
	assert.Equal(t, 1, f.store.enrollmentCount())
}

func TestVerifyAndSettleGatewayPaymentReuseConflicts(t *testing.T) {
	f := newSettlementFixture()
	first := f.order(t, "stu-1")
	second := f.order(t, "stu-1")

	_, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", callback(first, "pay_gw_1"), models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.settlement.VerifyAndSettle(context.Background(), "stu-1", callback(second, "pay_gw_1"), models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, models.PaymentStatusPending, f.store.payment(second.PaymentRecordID).Status)
}

func TestVerifyAndSettleStorageFailureQueuesReconciliation(t *testing.T) {
	f := newSettlementFixture()
	order := f.order(t, "stu-1")
	f.store.settleErr = errors.New("connection reset by peer")

	_, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", callback(order, "pay_gw_1"), models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStorageUnavailable.Code, appErr.Code)
	assert.Equal(t, 503, appErr.Status)
	assert.Contains(t, appErr.Message, "payment received")

	require.Len(t, f.queue.tickets, 1)
	ticket := f.queue.tickets[0]
	assert.Equal(t, order.PaymentRecordID, ticket.PaymentRecordID)
	assert.Equal(t, "pay_gw_1", ticket.GatewayPaymentID)
	assert.Equal(t, "stu-1", ticket.StudentID)

	// Once storage recovers the same callback settles normally.
	f.store.settleErr = nil
	resp, err := f.settlement.VerifyAndSettle(context.Background(), "stu-1", callback(order, "pay_gw_1"), models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.EnrollmentID)
}
