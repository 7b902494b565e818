package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/batchpass-api/internal/models"
)

const pqUniqueViolation = "23505"

// SettleParams carries the verified callback values committed by Settle.
type SettleParams struct {
	PaymentRecordID  string
	GatewayPaymentID string
	ActorID          string
	IPAddress        string
	UserAgent        string
	PaidAt           time.Time
}

// SettleResult reports the enrollment bound to the payment record.
type SettleResult struct {
	EnrollmentID string
	Replayed     bool
}

// SettlementRepository commits a verified payment and its enrollment atomically.
type SettlementRepository struct {
	db *sqlx.DB
}

// NewSettlementRepository constructs the repository.
func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

type lockedPayment struct {
	ID           string               `db:"id"`
	BatchID      string               `db:"batch_id"`
	StudentID    string               `db:"student_id"`
	Status       models.PaymentStatus `db:"status"`
	EnrollmentID *string              `db:"enrollment_id"`
}

// Settle marks the record successful, upserts the (batch, student) enrollment to active/paid and links
// the two in one transaction. A record already in success is reported as a replay. Any other
// non-pending status yields models.ErrPaymentNotPending.
func (r *SettlementRepository) Settle(ctx context.Context, params SettleParams) (result *SettleResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var record lockedPayment
	const lockQuery = `SELECT id, batch_id, student_id, status, enrollment_id FROM payment_records WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &record, lockQuery, params.PaymentRecordID); err != nil {
		return nil, err
	}

	switch record.Status {
	case models.PaymentStatusSuccess:
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit settlement replay: %w", err)
		}
		committed = true
		replay := &SettleResult{Replayed: true}
		if record.EnrollmentID != nil {
			replay.EnrollmentID = *record.EnrollmentID
		}
		return replay, nil
	case models.PaymentStatusPending:
	default:
		return nil, models.ErrPaymentNotPending
	}

	paidAt := params.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	const markQuery = `UPDATE payment_records
        SET status = $2, gateway_payment_id = $3, signature_verified = TRUE, failure_reason = NULL, paid_at = $4, updated_at = $4
        WHERE id = $1`
	if _, err = tx.ExecContext(ctx, markQuery, record.ID, models.PaymentStatusSuccess, params.GatewayPaymentID, paidAt); err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrGatewayPaymentClaimed
		}
		return nil, fmt.Errorf("mark payment success: %w", err)
	}

	const upsertQuery = `INSERT INTO enrollments (id, batch_id, student_id, status, payment_status, progress_percentage, enrolled_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, $6, $6, $6)
        ON CONFLICT (batch_id, student_id)
        DO UPDATE SET status = EXCLUDED.status, payment_status = EXCLUDED.payment_status,
                      enrolled_at = COALESCE(enrollments.enrolled_at, EXCLUDED.enrolled_at), updated_at = EXCLUDED.updated_at
        RETURNING id`
	var enrollmentID string
	if err = tx.GetContext(ctx, &enrollmentID, upsertQuery, uuid.NewString(), record.BatchID, record.StudentID,
		models.EnrollmentStatusActive, models.EnrollmentPaymentPaid, paidAt); err != nil {
		return nil, fmt.Errorf("upsert enrollment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE payment_records SET enrollment_id = $2 WHERE id = $1`, record.ID, enrollmentID); err != nil {
		return nil, fmt.Errorf("link enrollment: %w", err)
	}

	newValues, _ := json.Marshal(map[string]string{
		"status":             string(models.PaymentStatusSuccess),
		"gateway_payment_id": params.GatewayPaymentID,
		"enrollment_id":      enrollmentID,
	})
	audit := &models.AuditLog{
		Action:     models.AuditActionSettlementSuccess,
		Resource:   "payment_record",
		ResourceID: &record.ID,
		NewValues:  newValues,
		IPAddress:  params.IPAddress,
		UserAgent:  params.UserAgent,
		CreatedAt:  paidAt,
	}
	if params.ActorID != "" {
		actor := params.ActorID
		audit.UserID = &actor
	}
	if err = insertAuditLog(ctx, tx, audit); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}
	committed = true
	return &SettleResult{EnrollmentID: enrollmentID}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
