package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusInactive  EnrollmentStatus = "inactive"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// EnrollmentPaymentStatus mirrors the payment state of an enrollment.
type EnrollmentPaymentStatus string

// Possible enrollment payment statuses.
const (
	EnrollmentPaymentPending  EnrollmentPaymentStatus = "pending"
	EnrollmentPaymentPaid     EnrollmentPaymentStatus = "paid"
	EnrollmentPaymentFailed   EnrollmentPaymentStatus = "failed"
	EnrollmentPaymentRefunded EnrollmentPaymentStatus = "refunded"
)

// Enrollment links a student to a batch. At most one row exists per (batch_id, student_id).
type Enrollment struct {
	ID                 string                  `db:"id" json:"id"`
	BatchID            string                  `db:"batch_id" json:"batch_id"`
	StudentID          string                  `db:"student_id" json:"student_id"`
	Status             EnrollmentStatus        `db:"status" json:"status"`
	PaymentStatus      EnrollmentPaymentStatus `db:"payment_status" json:"payment_status"`
	ProgressPercentage float64                 `db:"progress_percentage" json:"progress_percentage"`
	EnrolledAt         *time.Time              `db:"enrolled_at" json:"enrolled_at,omitempty"`
	StartedAt          *time.Time              `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time              `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time               `db:"updated_at" json:"updated_at"`
}
