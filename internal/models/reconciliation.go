package models

import "time"

// ReconciliationStatus tracks manual follow-up of a stuck settlement.
type ReconciliationStatus string

// Possible reconciliation statuses.
const (
	ReconciliationStatusOpen     ReconciliationStatus = "open"
	ReconciliationStatusResolved ReconciliationStatus = "resolved"
)

// ReconciliationTicket records a verified gateway payment whose enrollment commit failed.
type ReconciliationTicket struct {
	ID               string               `db:"id" json:"id"`
	PaymentRecordID  string               `db:"payment_record_id" json:"payment_record_id"`
	StudentID        string               `db:"student_id" json:"student_id"`
	BatchID          string               `db:"batch_id" json:"batch_id"`
	GatewayOrderID   string               `db:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID string               `db:"gateway_payment_id" json:"gateway_payment_id"`
	Reason           string               `db:"reason" json:"reason"`
	Status           ReconciliationStatus `db:"status" json:"status"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
}
