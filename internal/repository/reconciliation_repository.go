package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/batchpass-api/internal/models"
)

// ReconciliationRepository stores tickets for payments that were verified but not committed.
type ReconciliationRepository struct {
	db *sqlx.DB
}

// NewReconciliationRepository constructs the repository.
func NewReconciliationRepository(db *sqlx.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Create inserts a ticket. A second ticket for the same payment record is ignored.
func (r *ReconciliationRepository) Create(ctx context.Context, ticket *models.ReconciliationTicket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	if ticket.Status == "" {
		ticket.Status = models.ReconciliationStatusOpen
	}
	const query = `INSERT INTO reconciliation_tickets
        (id, payment_record_id, student_id, batch_id, gateway_order_id, gateway_payment_id, reason, status, created_at)
        VALUES (:id, :payment_record_id, :student_id, :batch_id, :gateway_order_id, :gateway_payment_id, :reason, :status, :created_at)
        ON CONFLICT (payment_record_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		return fmt.Errorf("create reconciliation ticket: %w", err)
	}
	return nil
}

// ListOpen returns unresolved tickets oldest first.
func (r *ReconciliationRepository) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationTicket, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, payment_record_id, student_id, batch_id, gateway_order_id, gateway_payment_id, reason, status, created_at
        FROM reconciliation_tickets WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var tickets []models.ReconciliationTicket
	if err := r.db.SelectContext(ctx, &tickets, query, models.ReconciliationStatusOpen, limit); err != nil {
		return nil, fmt.Errorf("list reconciliation tickets: %w", err)
	}
	return tickets, nil
}
