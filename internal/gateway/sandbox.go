package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// SandboxClient mints order ids locally for development and tests.
type SandboxClient struct {
	keyID string
}

// NewSandboxClient constructs a sandbox gateway.
func NewSandboxClient(keyID string) *SandboxClient {
	return &SandboxClient{keyID: keyID}
}

// KeyID implements Client.
func (c *SandboxClient) KeyID() string {
	return c.keyID
}

// CreateOrder implements Client.
func (c *SandboxClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return &Order{ID: id, Amount: req.Amount, Currency: strings.ToUpper(req.Currency), Status: "created"}, nil
}
