package models

import "time"

// PaymentStatus represents the settlement state of a checkout attempt.
type PaymentStatus string

// Possible payment statuses. success and failed are terminal for settlement.
const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// BillingInfo is the contact snapshot captured when the order is issued.
type BillingInfo struct {
	Name  string `db:"billing_name" json:"name" validate:"required,max=120"`
	Email string `db:"billing_email" json:"email" validate:"required,email,max=254"`
	Phone string `db:"billing_phone" json:"phone" validate:"required,min=7,max=20"`
}

// PaymentRecord is one checkout attempt for a (student, batch) pair.
type PaymentRecord struct {
	ID                string        `db:"id" json:"id"`
	BatchID           string        `db:"batch_id" json:"batch_id"`
	StudentID         string        `db:"student_id" json:"student_id"`
	Amount            int64         `db:"amount" json:"amount"`
	Currency          string        `db:"currency" json:"currency"`
	TaxRateBps        int64         `db:"tax_rate_bps" json:"tax_rate_bps"`
	BillingInfo       `json:"billing"`
	GatewayOrderID    *string       `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID  *string       `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	Status            PaymentStatus `db:"status" json:"status"`
	SignatureVerified *bool         `db:"signature_verified" json:"signature_verified,omitempty"`
	FailureReason     *string       `db:"failure_reason" json:"failure_reason,omitempty"`
	EnrollmentID      *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	PaidAt            *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches a record with the batch name for history views.
type PaymentDetail struct {
	PaymentRecord
	BatchName string `db:"batch_name" json:"batch_name"`
}

// PaymentFilter selects a student's payment history page.
type PaymentFilter struct {
	StudentID string
	Status    PaymentStatus
	Page      int
	PageSize  int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
