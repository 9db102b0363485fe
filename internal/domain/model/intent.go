package model

import "time"

// Gateway identifies a payment provider. Every supported provider is a fixed
// variant bound at startup to exactly one adapter implementation.
type Gateway string

const (
	GatewayZarinPal Gateway = "zarinpal"
	GatewayIDPay    Gateway = "idpay"
	GatewayNoop     Gateway = "noop" // dev/testing only, auto-approves
)

type IntentState string

const (
	IntentStatePending  IntentState = "pending"  // created; awaiting a trustworthy confirmation
	IntentStateApproved IntentState = "approved" // confirmed, amount matched, crediting performed
	IntentStateRejected IntentState = "rejected" // provider reported failure or cancellation
	IntentStateFailed   IntentState = "failed"   // verification error, timeout, or amount mismatch
)

// Terminal reports whether the state never changes again. Replays against a
// terminal intent are no-ops, not errors.
func (s IntentState) Terminal() bool {
	return s == IntentStateApproved || s == IntentStateRejected || s == IntentStateFailed
}

type TargetType string

const (
	TargetPlanSubscription TargetType = "plan_subscription"
	TargetInvoice          TargetType = "invoice"
)

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Target is what a successful payment credits: a plan subscription for a user,
// or a partial/full payment against an invoice.
type Target struct {
	Type  TargetType   // plan_subscription | invoice
	Ref   string       // plan ID or invoice ID
	Cycle BillingCycle // set for plan_subscription targets only
}

// PaymentIntent is one attempted charge, tracked from initiation to terminal
// outcome. ExternalReference is unique across all intents and is the
// idempotency key for crediting.
type PaymentIntent struct {
	ID                string
	TenantID          string // owner of the gateway credentials that apply
	UserID            string // purchaser (plan flows) or payer hint (invoice flows, may be empty)
	Target            Target
	Gateway           Gateway
	ExternalReference string  // self-generated order id, echoed back by the provider
	ProviderReference *string // provider-side id, set after initiate or confirm
	Amount            int64   // minor units
	Currency          string
	State             IntentState
	Meta              map[string]string // flow metadata embedded at initiate time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

// ConfirmationResult is the normalized, already-authenticated view of a
// provider confirmation. Only adapters produce these; anything that fails
// authenticity verification never becomes a ConfirmationResult.
type ConfirmationResult struct {
	ExternalReference string
	Outcome           Outcome
	ProviderReference string
	ConfirmedAmount   int64 // minor units, as reported by the provider
	ConfirmedCurrency string
}

// InitiationResult is what the client needs to continue the payment: either a
// redirect URL (hosted page flows) or a client-side token (SDK flows).
// ProviderReference carries the provider-side session id (ZarinPal authority,
// IDPay transaction id); it is persisted onto the intent before the result is
// returned to the client so a lost callback leaves a recoverable intent.
type InitiationResult struct {
	RedirectURL       string
	ClientToken       string
	ExternalReference string
	ProviderReference string
}

// Callback carries one raw inbound provider confirmation (webhook POST or
// redirect GET) without any interpretation. Adapters own the parsing.
type Callback struct {
	Gateway    Gateway
	Query      map[string]string
	Headers    map[string]string
	Body       []byte
	RemoteAddr string
	ReceivedAt time.Time
}
