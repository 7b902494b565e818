package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/batchpass-api/internal/models"
)

// PaymentRepository persists checkout attempts.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `p.id, p.batch_id, p.student_id, p.amount, p.currency, p.tax_rate_bps, p.billing_name, p.billing_email, p.billing_phone,
       p.gateway_order_id, p.gateway_payment_id, p.status, p.signature_verified, p.failure_reason, p.enrollment_id,
       p.created_at, p.paid_at, p.updated_at`

// Create inserts a pending payment record. Amount, tax rate and billing are immutable afterwards.
func (r *PaymentRepository) Create(ctx context.Context, record *models.PaymentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt
	record.Status = models.PaymentStatusPending
	const query = `INSERT INTO payment_records
        (id, batch_id, student_id, amount, currency, tax_rate_bps, billing_name, billing_email, billing_phone, status, created_at, updated_at)
        VALUES (:id, :batch_id, :student_id, :amount, :currency, :tax_rate_bps, :billing_name, :billing_email, :billing_phone, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create payment record: %w", err)
	}
	return nil
}

// FindByID returns a payment record.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records p WHERE p.id = $1`
	var record models.PaymentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindDetailByID returns a payment record with its batch name.
func (r *PaymentRepository) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	query := `SELECT ` + paymentColumns + `, COALESCE(b.name, '') AS batch_name
        FROM payment_records p LEFT JOIN batches b ON b.id = p.batch_id WHERE p.id = $1`
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// AttachGatewayOrder stores the gateway order id minted for a pending record.
func (r *PaymentRepository) AttachGatewayOrder(ctx context.Context, id, gatewayOrderID string) error {
	const query = `UPDATE payment_records SET gateway_order_id = $2, updated_at = $3
        WHERE id = $1 AND status = $4 AND gateway_order_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, gatewayOrderID, time.Now().UTC(), models.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("attach gateway order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach gateway order rows: %w", err)
	}
	if affected == 0 {
		return models.ErrPaymentNotPending
	}
	return nil
}

// MarkFailed moves a pending record to failed. It reports false when the record was no longer pending.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	const query = `UPDATE payment_records SET status = $2, signature_verified = FALSE, failure_reason = $3, updated_at = $4
        WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, models.PaymentStatusFailed, reason, time.Now().UTC(), models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment failed rows: %w", err)
	}
	return affected > 0, nil
}

// ListByStudent returns a student's payment history newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	conditions := []string{"p.student_id = $1"}
	args := []interface{}{filter.StudentID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)))
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, COALESCE(b.name, '') AS batch_name
        FROM payment_records p LEFT JOIN batches b ON b.id = p.batch_id%s
        ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, paymentColumns, clause, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM payment_records p" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// CreateAuditLog appends an audit trail row outside a transaction.
func (r *PaymentRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}

func insertAuditLog(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := exec.ExecContext(ctx, query, log.ID, log.UserID, log.Action, log.Resource, log.ResourceID,
		jsonParam(log.OldValues), jsonParam(log.NewValues), log.IPAddress, log.UserAgent, log.CreatedAt); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// jsonParam sends JSON as text so Postgres can cast it to jsonb; []byte would arrive as bytea.
func jsonParam(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
