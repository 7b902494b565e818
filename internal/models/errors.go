package models

import "errors"

// Storage-level outcomes the settlement pipeline must distinguish from outages.
var (
	// ErrPaymentNotPending is returned when a record already left the pending state.
	ErrPaymentNotPending = errors.New("payment record is not pending")
	// ErrGatewayPaymentClaimed is returned when another record already holds the gateway payment id.
	ErrGatewayPaymentClaimed = errors.New("gateway payment already claimed by another record")
)
