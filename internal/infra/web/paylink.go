package web

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"saas-payment-core/internal/domain"
)

// PayLinkSigner mints and verifies the tokens behind public payment links.
// A link grants exactly one capability: pay the named invoice until the token
// expires. No session, no tenant API access.
type PayLinkSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewPayLinkSigner(secret string, ttl time.Duration) *PayLinkSigner {
	return &PayLinkSigner{secret: []byte(secret), ttl: ttl}
}

type payLinkClaims struct {
	InvoiceID string `json:"invoice_id"`
	TenantID  string `json:"tenant_id"`
	jwt.RegisteredClaims
}

func (s *PayLinkSigner) Mint(invoiceID, tenantID string) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(s.ttl)
	claims := payLinkClaims{
		InvoiceID: invoiceID,
		TenantID:  tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   invoiceID,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tok.SignedString(s.secret)
	return token, expiresAt, err
}

// Verify returns the invoice the token pays for. Expired, tampered and
// otherwise unparseable tokens all collapse to ErrInvalidPaymentToken; the
// payer learns nothing about which check failed.
func (s *PayLinkSigner) Verify(token string) (invoiceID string, err error) {
	claims := &payLinkClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !tkn.Valid || claims.InvoiceID == "" {
		return "", domain.ErrInvalidPaymentToken
	}
	return claims.InvoiceID, nil
}
