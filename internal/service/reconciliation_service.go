package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/jobs"
)

const reconciliationJobType = "reconciliation.ticket"

type reconciliationRepository interface {
	Create(ctx context.Context, ticket *models.ReconciliationTicket) error
	ListOpen(ctx context.Context, limit int) ([]models.ReconciliationTicket, error)
}

// ReconciliationService records payments that were verified but could not be committed. Tickets are
// written in the background so the failing request returns immediately.
type ReconciliationService struct {
	repo   reconciliationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewReconciliationService constructs the service and its worker queue. Call Start before use.
func NewReconciliationService(repo reconciliationRepository, cfg jobs.QueueConfig, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReconciliationService{repo: repo, logger: logger}
	cfg.Logger = logger
	cfg.DeadLetter = svc.deadLetter
	svc.queue = jobs.NewQueue("reconciliation", svc.handle, cfg)
	return svc
}

// Start launches the queue workers.
func (s *ReconciliationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains outstanding tickets until ctx expires.
func (s *ReconciliationService) Stop(ctx context.Context) {
	s.queue.Stop(ctx)
}

// Enqueue schedules a ticket for persistence.
func (s *ReconciliationService) Enqueue(ctx context.Context, ticket models.ReconciliationTicket) error {
	return s.queue.Enqueue(ctx, jobs.Job{
		ID:      uuid.NewString(),
		Type:    reconciliationJobType,
		Payload: ticket,
	})
}

// ListOpen returns unresolved tickets for support staff.
func (s *ReconciliationService) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationTicket, error) {
	tickets, err := s.repo.ListOpen(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reconciliation tickets")
	}
	if tickets == nil {
		tickets = []models.ReconciliationTicket{}
	}
	return tickets, nil
}

func (s *ReconciliationService) handle(ctx context.Context, job jobs.Job) error {
	ticket, ok := job.Payload.(models.ReconciliationTicket)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	if err := s.repo.Create(ctx, &ticket); err != nil {
		return err
	}
	s.logger.Info("reconciliation ticket recorded",
		zap.String("ticket_id", ticket.ID),
		zap.String("payment_record_id", ticket.PaymentRecordID),
	)
	return nil
}

// deadLetter leaves the last trace of a ticket that could not be stored.
func (s *ReconciliationService) deadLetter(job jobs.Job, err error) {
	ticket, _ := job.Payload.(models.ReconciliationTicket)
	s.logger.Error("reconciliation ticket dropped, manual follow-up required",
		zap.String("job_id", job.ID),
		zap.String("payment_record_id", ticket.PaymentRecordID),
		zap.String("student_id", ticket.StudentID),
		zap.String("batch_id", ticket.BatchID),
		zap.String("gateway_order_id", ticket.GatewayOrderID),
		zap.String("gateway_payment_id", ticket.GatewayPaymentID),
		zap.String("reason", ticket.Reason),
		zap.Error(err),
	)
}
