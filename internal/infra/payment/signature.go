package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignPayload computes hex(HMAC-SHA256(payload, secret)).
func SignPayload(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature compares a presented signature against the expected one in
// constant time, case-insensitively (providers differ on hex casing).
func VerifySignature(secret, payload, signature string) bool {
	expected := SignPayload(secret, payload)
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(signature)))
}

// verifyZarinPalWebhookSignature checks the documented scheme:
// signature = HMAC-SHA256(amount + authority + status + secret).
func verifyZarinPalWebhookSignature(secret string, data map[string]string, signature string) bool {
	payload := data["amount"] + data["authority"] + data["status"] + secret
	return VerifySignature(secret, payload, signature)
}
