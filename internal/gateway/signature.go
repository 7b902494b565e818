package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SignaturePayload binds a gateway payment to the stored order terms.
type SignaturePayload struct {
	OrderID   string
	PaymentID string
	Amount    int64
	Currency  string
}

func (p SignaturePayload) canonical() string {
	return strings.Join([]string{
		p.OrderID,
		p.PaymentID,
		strconv.FormatInt(p.Amount, 10),
		strings.ToUpper(p.Currency),
	}, "|")
}

// Sign returns the hex HMAC-SHA256 of the payload.
func Sign(secret string, payload SignaturePayload) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload.canonical()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time. An empty secret never verifies.
func VerifySignature(secret string, payload SignaturePayload, signature string) bool {
	if secret == "" || signature == "" || payload.OrderID == "" || payload.PaymentID == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
