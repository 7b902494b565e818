package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/batchpass-api/internal/models"
)

// EnrollmentRepository reads enrollments. Writes happen only inside SettlementRepository.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, batch_id, student_id, status, payment_status, progress_percentage,
       enrolled_at, started_at, completed_at, created_at, updated_at`

// FindByBatchAndStudent returns the unique enrollment for the pair.
func (r *EnrollmentRepository) FindByBatchAndStudent(ctx context.Context, batchID, studentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE batch_id = $1 AND student_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, batchID, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CountActiveSeats counts paid, active enrollments for capacity checks.
func (r *EnrollmentRepository) CountActiveSeats(ctx context.Context, batchID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE batch_id = $1 AND status = $2 AND payment_status = $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, batchID, models.EnrollmentStatusActive, models.EnrollmentPaymentPaid); err != nil {
		return 0, fmt.Errorf("count active seats: %w", err)
	}
	return total, nil
}
