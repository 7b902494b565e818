package dto

import (
	"time"

	"github.com/noah-isme/batchpass-api/internal/models"
)

// VerifyPaymentRequest is the gateway callback relayed by the browser.
type VerifyPaymentRequest struct {
	PaymentRecordID  string `json:"payment_record_id" validate:"required"`
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,max=128"`
	GatewaySignature string `json:"gateway_signature" validate:"required,hexadecimal,max=128"`
}

// VerifyPaymentResponse reports the enrollment bound to the payment.
type VerifyPaymentResponse struct {
	EnrollmentID string `json:"enrollment_id"`
	Replayed     bool   `json:"replayed"`
}

// PaymentHistoryQuery captures list filters from the query string.
type PaymentHistoryQuery struct {
	Status   models.PaymentStatus `form:"status" validate:"omitempty,oneof=pending success failed refunded"`
	Page     int                  `form:"page" validate:"omitempty,min=1"`
	PageSize int                  `form:"limit" validate:"omitempty,min=1,max=100"`
}

// ReceiptLinkResponse is a short-lived download link for a receipt PDF.
type ReceiptLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
