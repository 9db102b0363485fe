package repository

import (
	"context"
	"time"

	"saas-payment-core/internal/domain/model"
)

// IntentRepository persists payment intents. External references are unique;
// TransitionIfPending is the single compare-and-set the whole reconciliation
// design leans on.
type IntentRepository interface {
	Save(ctx context.Context, tx Tx, in *model.PaymentIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentIntent, error)
	FindByExternalReference(ctx context.Context, tx Tx, ref string) (*model.PaymentIntent, error)
	// SetProviderReference records the provider-side id allocated at initiate time.
	SetProviderReference(ctx context.Context, tx Tx, id string, providerRef string) error
	// TransitionIfPending applies the state change only when the current state
	// is pending, as one conditional UPDATE. It reports applied=false for any
	// call against an already-terminal intent.
	TransitionIfPending(ctx context.Context, tx Tx, externalRef string, state model.IntentState, providerRef *string, resolvedAt time.Time) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)
}
