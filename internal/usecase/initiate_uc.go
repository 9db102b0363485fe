// File: internal/usecase/initiate_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentInitiation = (*paymentInitiation)(nil)

// PaymentInitiation starts the two business flows: activate a subscription
// plan, and pay down an invoice (authenticated or via public payment link).
//
// Initiation is deliberately not idempotent across retries; the confirmation
// side is, which is cheaper to reason about than idempotent initiation across
// thirty heterogeneous provider APIs. A retry simply creates a fresh intent.
type PaymentInitiation interface {
	InitiatePlan(ctx context.Context, userID, planID string, cycle model.BillingCycle, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error)
	InitiateInvoice(ctx context.Context, invoiceID string, amount int64, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error)
}

type paymentInitiation struct {
	intents         repository.IntentRepository
	invoices        repository.InvoiceRepository
	plans           repository.PlanRepository
	credits         *CreditingActions
	resolver        CredentialResolver
	gateways        GatewayRegistry
	callbackBaseURL string
	log             *zerolog.Logger
}

func NewPaymentInitiation(
	intents repository.IntentRepository,
	invoices repository.InvoiceRepository,
	plans repository.PlanRepository,
	credits *CreditingActions,
	resolver CredentialResolver,
	gateways GatewayRegistry,
	callbackBaseURL string,
	logger *zerolog.Logger,
) *paymentInitiation {
	return &paymentInitiation{
		intents:         intents,
		invoices:        invoices,
		plans:           plans,
		credits:         credits,
		resolver:        resolver,
		gateways:        gateways,
		callbackBaseURL: callbackBaseURL,
		log:             logger,
	}
}

func (u *paymentInitiation) InitiatePlan(ctx context.Context, userID, planID string, cycle model.BillingCycle, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error) {
	if userID == "" || planID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	if cycle != model.CycleMonthly && cycle != model.CycleYearly {
		return nil, nil, fmt.Errorf("%w: billing cycle %q", domain.ErrInvalidArgument, cycle)
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, nil, err
	}
	if !plan.Active {
		return nil, nil, fmt.Errorf("%w: plan %s is not purchasable", domain.ErrInvalidArgument, planID)
	}

	// For plan purchases the purchaser is the tenant whose credentials apply.
	target := model.Target{Type: model.TargetPlanSubscription, Ref: planID, Cycle: cycle}
	meta := map[string]string{"flow": "plan", "user_id": userID, "plan_id": planID, "cycle": string(cycle)}
	return u.initiate(ctx, userID, userID, target, gateway, plan.Price(cycle), plan.Currency, meta)
}

func (u *paymentInitiation) InitiateInvoice(ctx context.Context, invoiceID string, amount int64, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error) {
	if invoiceID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}

	inv, err := u.invoices.FindByID(ctx, repository.NoTX, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	remaining, err := u.credits.InvoiceBalance(ctx, repository.NoTX, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if remaining == 0 {
		return nil, nil, domain.ErrInvoiceSettled
	}
	if amount > remaining {
		return nil, nil, fmt.Errorf("%w: amount %d exceeds remaining balance %d", domain.ErrInvalidArgument, amount, remaining)
	}

	// The invoice's issuer is the tenant; payers on public links are
	// unauthenticated and bring no identity of their own.
	target := model.Target{Type: model.TargetInvoice, Ref: invoiceID}
	meta := map[string]string{"flow": "invoice", "invoice_id": invoiceID}
	return u.initiate(ctx, inv.TenantID, "", target, gateway, amount, inv.Currency, meta)
}

// initiate persists a pending intent with a self-generated external reference
// BEFORE calling the provider, then stores the provider-side reference right
// after. A crash between the provider call and persistence therefore cannot
// strand an unrecoverable charge: the pending row already exists and the
// reconciler can finish it.
func (u *paymentInitiation) initiate(ctx context.Context, tenantID, userID string, target model.Target, gateway model.Gateway, amount int64, currency string, meta map[string]string) (*model.PaymentIntent, *model.InitiationResult, error) {
	adapter, ok := u.gateways.Lookup(gateway)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrUnknownGateway, gateway)
	}

	creds, configured, err := u.resolver.Resolve(ctx, tenantID, gateway)
	if err != nil {
		return nil, nil, err
	}
	if !configured {
		return nil, nil, domain.ErrGatewayNotConfigured
	}

	now := time.Now()
	meta["tenant_id"] = tenantID
	meta["callback_url"] = fmt.Sprintf("%s/callbacks/%s/%s", u.callbackBaseURL, gateway, meta["flow"])
	intent := &model.PaymentIntent{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		UserID:            userID,
		Target:            target,
		Gateway:           gateway,
		ExternalReference: ulid.Make().String(),
		Amount:            amount,
		Currency:          currency,
		State:             model.IntentStatePending,
		Meta:              meta,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := u.intents.Save(ctx, repository.NoTX, intent); err != nil {
		return nil, nil, err
	}

	res, err := adapter.Initiate(ctx, intent, creds)
	if err != nil {
		// Retryable for the user; the pending intent stays behind and holds
		// nothing that blocks a fresh attempt.
		u.log.Warn().Err(err).Str("gateway", string(gateway)).Str("external_ref", intent.ExternalReference).Msg("provider initiation failed")
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	res.ExternalReference = intent.ExternalReference
	if res.ProviderReference != "" {
		// The provider-side id is what a later status re-query keys on; it must
		// be durable before the client sees the redirect, or a lost callback
		// strands the charge beyond the reconciler's reach.
		if err := u.intents.SetProviderReference(ctx, repository.NoTX, intent.ID, res.ProviderReference); err != nil {
			return nil, nil, err
		}
		ref := res.ProviderReference
		intent.ProviderReference = &ref
	}

	u.log.Info().Str("external_ref", intent.ExternalReference).Str("gateway", string(gateway)).
		Str("tenant_id", tenantID).Int64("amount", amount).Str("currency", currency).
		Str("target_type", string(target.Type)).Msg("payment initiated")
	return intent, res, nil
}
