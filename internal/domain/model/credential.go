package model

import "time"

type CredentialMode string

const (
	ModeSandbox CredentialMode = "sandbox"
	ModeLive    CredentialMode = "live"
)

// CredentialSet holds one tenant's configuration for one gateway. Every
// company brings its own merchant account; there is no global credential.
type CredentialSet struct {
	TenantID  string
	Gateway   Gateway
	Mode      CredentialMode
	Enabled   bool
	Secrets   map[string]string // provider-specific keys: merchant_id, api_key, webhook_secret, ...
	UpdatedAt time.Time
}

// Secret returns the named secret or "" when absent.
func (c *CredentialSet) Secret(key string) string {
	if c == nil || c.Secrets == nil {
		return ""
	}
	return c.Secrets[key]
}

func (c *CredentialSet) Sandbox() bool { return c != nil && c.Mode != ModeLive }
