package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and checks gateway signatures. Secrets are held here only.
type Signer struct {
	keySecret     []byte
	webhookSecret []byte
}

func NewSigner(keySecret, webhookSecret string) *Signer {
	return &Signer{keySecret: []byte(keySecret), webhookSecret: []byte(webhookSecret)}
}

// ComputeSignature returns hex(HMAC-SHA256(keySecret, orderID|paymentID)).
func (s *Signer) ComputeSignature(orderID, paymentID string) string {
	return sign(s.keySecret, []byte(orderID+"|"+paymentID))
}

// Verify compares in constant time.
func (s *Signer) Verify(orderID, paymentID, signature string) bool {
	expected := s.ComputeSignature(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEnabled reports whether a webhook secret is configured.
func (s *Signer) WebhookEnabled() bool {
	return len(s.webhookSecret) > 0
}

// VerifyWebhook authenticates a raw webhook body.
func (s *Signer) VerifyWebhook(body []byte, signature string) bool {
	if !s.WebhookEnabled() {
		return false
	}
	return hmac.Equal([]byte(sign(s.webhookSecret, body)), []byte(signature))
}

// SignWebhook is the counterpart of VerifyWebhook.
func (s *Signer) SignWebhook(body []byte) string {
	return sign(s.webhookSecret, body)
}

func sign(secret, msg []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}
