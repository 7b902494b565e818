package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/batchpass-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = sqlxDB.Close()
	}
}

var enrollmentRowColumns = []string{"id", "batch_id", "student_id", "status", "payment_status", "progress_percentage",
	"enrolled_at", "started_at", "completed_at", "created_at", "updated_at"}

func TestEnrollmentRepositoryFindByBatchAndStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow("enr-1", "batch-1", "stu-1", "active", "paid", 40.5, now, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE batch_id = $1 AND student_id = $2")).
		WithArgs("batch-1", "stu-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByBatchAndStudent(context.Background(), "batch-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, models.EnrollmentPaymentPaid, enrollment.PaymentStatus)
	assert.NotNil(t, enrollment.EnrolledAt)
	assert.Nil(t, enrollment.CompletedAt)
}

func TestEnrollmentRepositoryFindByBatchAndStudentMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE batch_id = $1 AND student_id = $2")).
		WithArgs("batch-1", "stu-2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByBatchAndStudent(context.Background(), "batch-1", "stu-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryCountActiveSeats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE batch_id = $1")).
		WithArgs("batch-1", models.EnrollmentStatusActive, models.EnrollmentPaymentPaid).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	total, err := repo.CountActiveSeats(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 12, total)
}
