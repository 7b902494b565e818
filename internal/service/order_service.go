package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/gateway"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/pricing"
)

type batchReader interface {
	Batch(ctx context.Context, id string) (*models.Batch, error)
}

type orderEnrollmentReader interface {
	FindByBatchAndStudent(ctx context.Context, batchID, studentID string) (*models.Enrollment, error)
	CountActiveSeats(ctx context.Context, batchID string) (int, error)
}

type orderPaymentWriter interface {
	Create(ctx context.Context, record *models.PaymentRecord) error
	AttachGatewayOrder(ctx context.Context, id, gatewayOrderID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// OrderConfig fixes server-side pricing and the gateway deadline.
type OrderConfig struct {
	TaxRateBps      int64
	DefaultCurrency string
	GatewayTimeout  time.Duration
}

// OrderService issues checkout orders. Amounts come from the catalog, never from the client.
type OrderService struct {
	catalog     batchReader
	enrollments orderEnrollmentReader
	payments    orderPaymentWriter
	gateway     gateway.Client
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	config      OrderConfig
}

// NewOrderService constructs OrderService.
func NewOrderService(catalog batchReader, enrollments orderEnrollmentReader, payments orderPaymentWriter, client gateway.Client, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, config OrderConfig) *OrderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.GatewayTimeout <= 0 {
		config.GatewayTimeout = 10 * time.Second
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "INR"
	}
	return &OrderService{
		catalog:     catalog,
		enrollments: enrollments,
		payments:    payments,
		gateway:     client,
		validator:   validate,
		metrics:     metrics,
		logger:      logger,
		config:      config,
	}
}

// CreateOrder prices the batch, persists a pending payment record and mints a gateway order for it.
func (s *OrderService) CreateOrder(ctx context.Context, studentID string, req dto.CreateOrderRequest, meta models.RequestMeta) (resp *dto.CreateOrderResponse, err error) {
	ctx, span := startSpan(ctx, "order.create", attribute.String("batch.id", req.BatchID))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.Billing.Name = strings.TrimSpace(req.Billing.Name)
	req.Billing.Email = strings.TrimSpace(req.Billing.Email)
	req.Billing.Phone = strings.TrimSpace(req.Billing.Phone)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}

	batch, err := s.catalog.Batch(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}
	if !batch.Purchasable() {
		s.metrics.RecordOrder("not_purchasable")
		return nil, appErrors.ErrBatchNotPurchasable
	}

	enrollment, err := s.enrollments.FindByBatchAndStudent(ctx, batch.ID, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment != nil && enrollment.PaymentStatus == models.EnrollmentPaymentPaid {
		s.metrics.RecordOrder("already_enrolled")
		return nil, appErrors.ErrAlreadyEnrolled
	}

	if batch.Capacity > 0 {
		seats, err := s.enrollments.CountActiveSeats(ctx, batch.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check capacity")
		}
		if seats >= batch.Capacity {
			s.metrics.RecordOrder("batch_full")
			return nil, appErrors.Clone(appErrors.ErrBatchNotPurchasable, "batch is full")
		}
	}

	amount, err := pricing.Total(batch.Fee, s.config.TaxRateBps)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to price batch")
	}
	currency := strings.ToUpper(batch.Currency)
	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	record := &models.PaymentRecord{
		BatchID:     batch.ID,
		StudentID:   studentID,
		Amount:      amount,
		Currency:    currency,
		TaxRateBps:  s.config.TaxRateBps,
		BillingInfo: req.Billing,
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment record")
	}
	span.SetAttributes(attribute.String("payment.record_id", record.ID), attribute.Int64("payment.amount", amount))

	gwCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()
	started := time.Now()
	order, err := s.gateway.CreateOrder(gwCtx, gateway.OrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  record.ID,
		Notes:    map[string]string{"batch_id": batch.ID, "student_id": studentID},
	})
	s.metrics.ObserveGatewayCall(time.Since(started))
	if err != nil {
		fields := []zap.Field{
			zap.String("payment_record_id", record.ID),
			zap.String("batch_id", batch.ID),
			zap.String("student_id", studentID),
			zap.Error(err),
		}
		if errors.Is(err, gateway.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			s.metrics.RecordOrder("gateway_unavailable")
			s.logger.Warn("gateway order creation failed", fields...)
			return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, appErrors.ErrGatewayUnavailable.Message)
		}
		// Rejections and malformed replies will not heal on retry.
		s.metrics.RecordOrder("gateway_rejected")
		s.logger.Error("gateway refused order", fields...)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment could not be started, please contact support")
	}

	if err := s.payments.AttachGatewayOrder(ctx, record.ID, order.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store gateway order")
	}

	s.audit(ctx, studentID, record, order.ID, meta)
	s.metrics.RecordOrder("issued")
	s.logger.Info("order issued",
		zap.String("payment_record_id", record.ID),
		zap.String("gateway_order_id", order.ID),
		zap.String("batch_id", batch.ID),
		zap.String("student_id", studentID),
		zap.Int64("amount", amount),
		zap.String("currency", currency),
	)

	return &dto.CreateOrderResponse{
		PaymentRecordID: record.ID,
		OrderID:         order.ID,
		Amount:          amount,
		Currency:        currency,
		GatewayKey:      s.gateway.KeyID(),
	}, nil
}

func (s *OrderService) audit(ctx context.Context, studentID string, record *models.PaymentRecord, orderID string, meta models.RequestMeta) {
	payload, _ := json.Marshal(map[string]interface{}{
		"batch_id":         record.BatchID,
		"amount":           record.Amount,
		"currency":         record.Currency,
		"gateway_order_id": orderID,
	})
	actor := studentID
	resourceID := record.ID
	if err := s.payments.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor,
		Action:     models.AuditActionOrderCreate,
		Resource:   "payment_record",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to write order audit log", zap.String("payment_record_id", record.ID), zap.Error(err))
	}
}
