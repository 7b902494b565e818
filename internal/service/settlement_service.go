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
	"github.com/noah-isme/batchpass-api/internal/repository"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
)

type settlementPaymentStore interface {
	FindByID(ctx context.Context, id string) (*models.PaymentRecord, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type settlementCommitter interface {
	Settle(ctx context.Context, params repository.SettleParams) (*repository.SettleResult, error)
}

type reconciliationEnqueuer interface {
	Enqueue(ctx context.Context, ticket models.ReconciliationTicket) error
}

// Failure reasons stored on the payment record. They never reach the caller.
const (
	failureNoGatewayOrder = "no gateway order attached"
	failureOrderMismatch  = "gateway order id mismatch"
	failureBadSignature   = "signature mismatch"
)

const (
	outcomeSettled        = "settled"
	outcomeReplayed       = "replayed"
	outcomeVerifyFailed   = "verification_failed"
	outcomeConflict       = "conflict"
	outcomeStorageFailure = "storage_unavailable"
)

const settlementResource = "payment_record"

// SettlementService verifies gateway callbacks and commits the enrollment they pay for.
type SettlementService struct {
	payments        settlementPaymentStore
	committer       settlementCommitter
	reconciliations reconciliationEnqueuer
	signingSecret   string
	validator       *validator.Validate
	metrics         *MetricsService
	logger          *zap.Logger
	now             func() time.Time
}

// NewSettlementService constructs SettlementService.
func NewSettlementService(payments settlementPaymentStore, committer settlementCommitter, reconciliations reconciliationEnqueuer, signingSecret string, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *SettlementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		payments:        payments,
		committer:       committer,
		reconciliations: reconciliations,
		signingSecret:   signingSecret,
		validator:       validate,
		metrics:         metrics,
		logger:          logger,
		now:             time.Now,
	}
}

// VerifyAndSettle checks the callback signature against the stored order and, when it matches,
// marks the payment successful and activates the enrollment in one transaction. Repeating the call
// for a settled record returns the same enrollment without verifying again.
func (s *SettlementService) VerifyAndSettle(ctx context.Context, studentID string, req dto.VerifyPaymentRequest, meta models.RequestMeta) (resp *dto.VerifyPaymentResponse, err error) {
	ctx, span := startSpan(ctx, "payment.settle", attribute.String("payment.record_id", req.PaymentRecordID))
	started := s.now()
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.GatewaySignature = strings.TrimSpace(req.GatewaySignature)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	record, err := s.payments.FindByID(ctx, req.PaymentRecordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrPaymentRecordNotFound
		}
		s.logger.Error("payment record lookup failed", zap.String("payment_record_id", req.PaymentRecordID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
	}
	if record.StudentID != studentID {
		return nil, appErrors.ErrPaymentRecordNotFound
	}

	switch record.Status {
	case models.PaymentStatusSuccess:
		s.metrics.RecordSettlement(outcomeReplayed, time.Since(started))
		return &dto.VerifyPaymentResponse{EnrollmentID: derefString(record.EnrollmentID), Replayed: true}, nil
	case models.PaymentStatusPending:
	default:
		s.metrics.RecordSettlement(outcomeVerifyFailed, time.Since(started))
		return nil, appErrors.ErrVerificationFailed
	}

	if reason := s.checkCallback(record, req); reason != "" {
		s.reject(ctx, record, req, reason, meta)
		s.metrics.RecordSettlement(outcomeVerifyFailed, time.Since(started))
		return nil, appErrors.ErrVerificationFailed
	}

	result, err := s.committer.Settle(ctx, repository.SettleParams{
		PaymentRecordID:  record.ID,
		GatewayPaymentID: req.GatewayPaymentID,
		ActorID:          studentID,
		IPAddress:        meta.IP,
		UserAgent:        meta.UserAgent,
		PaidAt:           s.now().UTC(),
	})
	if err != nil {
		return nil, s.settleFailure(ctx, record, req, err, started)
	}

	outcome := outcomeSettled
	if result.Replayed {
		outcome = outcomeReplayed
	}
	s.metrics.RecordSettlement(outcome, time.Since(started))
	span.SetAttributes(attribute.String("enrollment.id", result.EnrollmentID), attribute.Bool("settlement.replayed", result.Replayed))
	s.logger.Info("payment settled",
		zap.String("payment_record_id", record.ID),
		zap.String("gateway_order_id", req.GatewayOrderID),
		zap.String("gateway_payment_id", req.GatewayPaymentID),
		zap.String("enrollment_id", result.EnrollmentID),
		zap.String("batch_id", record.BatchID),
		zap.String("student_id", studentID),
		zap.Bool("replayed", result.Replayed),
	)

	return &dto.VerifyPaymentResponse{EnrollmentID: result.EnrollmentID, Replayed: result.Replayed}, nil
}

// checkCallback returns an empty string when the callback matches the stored order.
func (s *SettlementService) checkCallback(record *models.PaymentRecord, req dto.VerifyPaymentRequest) string {
	if record.GatewayOrderID == nil || *record.GatewayOrderID == "" {
		return failureNoGatewayOrder
	}
	if *record.GatewayOrderID != req.GatewayOrderID {
		return failureOrderMismatch
	}
	payload := gateway.SignaturePayload{
		OrderID:   *record.GatewayOrderID,
		PaymentID: req.GatewayPaymentID,
		Amount:    record.Amount,
		Currency:  record.Currency,
	}
	if !gateway.VerifySignature(s.signingSecret, payload, req.GatewaySignature) {
		return failureBadSignature
	}
	return ""
}

func (s *SettlementService) reject(ctx context.Context, record *models.PaymentRecord, req dto.VerifyPaymentRequest, reason string, meta models.RequestMeta) {
	s.logger.Warn("payment verification failed",
		zap.String("reason", reason),
		zap.String("payment_record_id", record.ID),
		zap.String("batch_id", record.BatchID),
		zap.String("student_id", record.StudentID),
		zap.String("stored_gateway_order_id", derefString(record.GatewayOrderID)),
		zap.String("supplied_gateway_order_id", req.GatewayOrderID),
		zap.String("gateway_payment_id", req.GatewayPaymentID),
		zap.Int64("amount", record.Amount),
		zap.String("currency", record.Currency),
	)

	changed, err := s.payments.MarkFailed(ctx, record.ID, reason)
	if err != nil {
		s.logger.Error("failed to mark payment failed", zap.String("payment_record_id", record.ID), zap.Error(err))
		return
	}
	if !changed {
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"status":                    string(models.PaymentStatusFailed),
		"reason":                    reason,
		"supplied_gateway_order_id": req.GatewayOrderID,
		"gateway_payment_id":        req.GatewayPaymentID,
	})
	actor := record.StudentID
	resourceID := record.ID
	if err := s.payments.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor,
		Action:     models.AuditActionSettlementFailure,
		Resource:   settlementResource,
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to write settlement failure audit log", zap.String("payment_record_id", record.ID), zap.Error(err))
	}
}

func (s *SettlementService) settleFailure(ctx context.Context, record *models.PaymentRecord, req dto.VerifyPaymentRequest, err error, started time.Time) error {
	fields := []zap.Field{
		zap.String("payment_record_id", record.ID),
		zap.String("gateway_order_id", req.GatewayOrderID),
		zap.String("gateway_payment_id", req.GatewayPaymentID),
		zap.String("batch_id", record.BatchID),
		zap.String("student_id", record.StudentID),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.metrics.RecordSettlement(outcomeVerifyFailed, time.Since(started))
		return appErrors.ErrPaymentRecordNotFound
	case errors.Is(err, models.ErrPaymentNotPending):
		s.logger.Warn("payment closed before settlement", fields...)
		s.metrics.RecordSettlement(outcomeVerifyFailed, time.Since(started))
		return appErrors.ErrVerificationFailed
	case errors.Is(err, models.ErrGatewayPaymentClaimed):
		s.logger.Warn("gateway payment already settled on another record", fields...)
		s.metrics.RecordSettlement(outcomeConflict, time.Since(started))
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "this payment was already used for another order")
	}

	s.logger.Error("settlement commit failed, payment needs reconciliation", fields...)
	s.metrics.RecordSettlement(outcomeStorageFailure, time.Since(started))
	if s.reconciliations != nil {
		ticket := models.ReconciliationTicket{
			PaymentRecordID:  record.ID,
			StudentID:        record.StudentID,
			BatchID:          record.BatchID,
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Reason:           err.Error(),
		}
		if qErr := s.reconciliations.Enqueue(context.WithoutCancel(ctx), ticket); qErr != nil {
			s.logger.Error("failed to enqueue reconciliation ticket", append(fields, zap.NamedError("queue_error", qErr))...)
		} else {
			s.metrics.RecordReconciliation()
		}
	}
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, appErrors.ErrStorageUnavailable.Message)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
