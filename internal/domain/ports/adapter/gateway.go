package adapter

import (
	"context"

	"saas-payment-core/internal/domain/model"
)

// GatewayAdapter is the hex port every payment provider implements. Adapters
// own the provider's wire format, signature scheme and amount encoding; the
// reconciliation core never sees any of it.
//
// Trust boundary: Confirm MUST verify the callback's authenticity using the
// provider's scheme (HMAC over a canonical string, a status re-query with the
// tenant's credentials, or a shared-secret hash) before returning a result.
// A callback that cannot be authenticated returns domain.ErrAuthenticity and
// never reaches the reconciliation engine.
type GatewayAdapter interface {
	Name() model.Gateway

	// Initiate creates a provider-side payment session for the intent and
	// returns a redirect URL or client token. The intent's external reference
	// is already persisted before Initiate is called; the returned provider
	// reference is persisted right after, so a crash in between cannot strand
	// an unrecoverable charge.
	Initiate(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error)

	// Reference extracts this core's external reference from a raw callback
	// without trusting anything else in the payload. It is used only to look
	// up the intent (and thereby the tenant whose credentials verify the rest).
	Reference(cb *model.Callback) (string, error)

	// Confirm authenticates the callback and normalizes it. The intent gives
	// adapters whose providers verify by re-query the expected amount.
	Confirm(ctx context.Context, cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error)
}

// StatusQuerier is implemented by adapters whose provider exposes a status
// API. The stale-intent reconciler uses it to finalize payments whose
// callback never arrived.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error)
}
