package dto

import "github.com/noah-isme/batchpass-api/internal/models"

// CreateOrderRequest starts a checkout. The amount is never taken from the client.
type CreateOrderRequest struct {
	BatchID string             `json:"batch_id" validate:"required"`
	Billing models.BillingInfo `json:"billing"`
}

// CreateOrderResponse carries what the browser checkout needs to open the gateway.
type CreateOrderResponse struct {
	PaymentRecordID string `json:"payment_record_id"`
	OrderID         string `json:"order_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayKey      string `json:"gateway_key"`
}
