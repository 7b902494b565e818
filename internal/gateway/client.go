// Package gateway talks to the external payment processor. The processor is an
// untrusted network boundary: orders are minted remotely, while callback
// signatures are verified locally with the shared signing secret.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks transport or upstream failures that are safe to retry.
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrRejected marks a 4xx refusal; the same request will keep failing.
	ErrRejected = errors.New("gateway rejected request")
)

// OrderRequest describes the amount the gateway must collect.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway-side order minted for a checkout attempt.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// Client is the collaborator used by the order issuer.
type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// KeyID is the publishable key the browser checkout needs.
	KeyID() string
}
