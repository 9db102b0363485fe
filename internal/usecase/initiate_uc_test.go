//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/usecase"
)

type initiationTestDeps struct {
	intents  *MockIntentRepo
	inv      *MockInvoiceRepo
	plans    *MockPlanRepo
	ledger   *MockLedgerRepo
	subs     *MockSubscriptionRepo
	creds    *MockCredentialRepo
	adapter  *MockGatewayAdapter
	registry *MockRegistry
	credits  *usecase.CreditingActions
}

func newInitiationDeps() *initiationTestDeps {
	d := &initiationTestDeps{
		intents: NewMockIntentRepo(),
		inv:     NewMockInvoiceRepo(),
		plans:   NewMockPlanRepo(),
		ledger:  NewMockLedgerRepo(),
		subs:    NewMockSubscriptionRepo(),
		creds:   NewMockCredentialRepo(),
		adapter: &MockGatewayAdapter{GatewayName: model.GatewayZarinPal},
	}
	d.registry = NewMockRegistry(d.adapter)
	d.credits = usecase.NewCreditingActions(d.ledger, d.inv, d.plans, d.subs, newTestLogger())
	return d
}

func (d *initiationTestDeps) uc() usecase.PaymentInitiation {
	resolver := usecase.NewCredentialResolver(d.creds, nil, newTestLogger())
	return usecase.NewPaymentInitiation(d.intents, d.inv, d.plans, d.credits, resolver, d.registry, "https://pay.example.com", newTestLogger())
}

func (d *initiationTestDeps) enableGateway(tenantID string) {
	d.creds.Save(context.Background(), nil, &model.CredentialSet{
		TenantID: tenantID,
		Gateway:  model.GatewayZarinPal,
		Mode:     model.ModeSandbox,
		Enabled:  true,
		Secrets:  map[string]string{"merchant_id": "m-1"},
	})
}

func TestPaymentInitiation_InitiatePlan(t *testing.T) {
	ctx := context.Background()
	plan := &model.SubscriptionPlan{ID: "plan-1", MonthlyPrice: 10000, YearlyPrice: 100000, Currency: "IRR", Active: true}

	t.Run("should persist a pending intent before calling the provider", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, plan)
		deps.enableGateway("user-1")

		var savedBeforeInitiate bool
		deps.adapter.InitiateFunc = func(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error) {
			if _, err := deps.intents.FindByExternalReference(ctx, repository.NoTX, intent.ExternalReference); err == nil {
				savedBeforeInitiate = true
			}
			return &model.InitiationResult{RedirectURL: "https://pay.example/x", ExternalReference: intent.ExternalReference}, nil
		}

		intent, res, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-1", model.CycleMonthly, model.GatewayZarinPal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !savedBeforeInitiate {
			t.Error("intent was not persisted before the provider call")
		}
		if intent.State != model.IntentStatePending {
			t.Errorf("expected pending, got %s", intent.State)
		}
		if intent.Amount != plan.MonthlyPrice {
			t.Errorf("expected amount %d, got %d", plan.MonthlyPrice, intent.Amount)
		}
		if intent.TenantID != "user-1" {
			t.Errorf("plan purchase tenant should be the purchaser, got %s", intent.TenantID)
		}
		if res.RedirectURL == "" {
			t.Error("expected a redirect URL")
		}
	})

	t.Run("should charge the yearly price for a yearly cycle", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, plan)
		deps.enableGateway("user-1")

		intent, _, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-1", model.CycleYearly, model.GatewayZarinPal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Amount != plan.YearlyPrice {
			t.Errorf("expected %d, got %d", plan.YearlyPrice, intent.Amount)
		}
	})

	t.Run("should reject an unknown billing cycle", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, plan)
		deps.enableGateway("user-1")

		_, _, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-1", "weekly", model.GatewayZarinPal)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject an inactive plan", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, &model.SubscriptionPlan{ID: "plan-2", MonthlyPrice: 1000, Currency: "IRR", Active: false})
		deps.enableGateway("user-1")

		_, _, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-2", model.CycleMonthly, model.GatewayZarinPal)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should surface unknown gateways", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, plan)
		deps.enableGateway("user-1")

		_, _, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-1", model.CycleMonthly, "stripe")
		if !errors.Is(err, domain.ErrUnknownGateway) {
			t.Errorf("expected ErrUnknownGateway, got %v", err)
		}
	})

	t.Run("should report not configured when the tenant has no credentials", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, plan)

		_, _, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-1", model.CycleMonthly, model.GatewayZarinPal)
		if !errors.Is(err, domain.ErrGatewayNotConfigured) {
			t.Errorf("expected ErrGatewayNotConfigured, got %v", err)
		}
	})

	t.Run("should leave the pending intent behind when the provider fails", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, plan)
		deps.enableGateway("user-1")

		var ref string
		deps.adapter.InitiateFunc = func(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error) {
			ref = intent.ExternalReference
			return nil, errors.New("provider boom")
		}

		_, _, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-1", model.CycleMonthly, model.GatewayZarinPal)
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			t.Fatalf("expected ErrProviderUnavailable, got %v", err)
		}

		in, err := deps.intents.FindByExternalReference(ctx, repository.NoTX, ref)
		if err != nil {
			t.Fatalf("pending intent should survive a provider failure: %v", err)
		}
		if in.State != model.IntentStatePending {
			t.Errorf("expected pending, got %s", in.State)
		}
	})

	t.Run("should persist the provider-side reference before returning", func(t *testing.T) {
		deps := newInitiationDeps()
		deps.plans.Save(ctx, nil, plan)
		deps.enableGateway("user-1")

		deps.adapter.InitiateFunc = func(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error) {
			return &model.InitiationResult{RedirectURL: "https://pay.example/x", ProviderReference: "A-99"}, nil
		}

		intent, res, err := deps.uc().InitiatePlan(ctx, "user-1", "plan-1", model.CycleMonthly, model.GatewayZarinPal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ExternalReference != intent.ExternalReference {
			t.Error("result must carry our reference, not the provider's")
		}
		if intent.ProviderReference == nil || *intent.ProviderReference != "A-99" {
			t.Error("provider reference missing from the returned intent")
		}

		// The stored row must carry it too: a lost callback is only recoverable
		// if a later status re-query can find the provider-side id.
		stored, err := deps.intents.FindByExternalReference(ctx, repository.NoTX, intent.ExternalReference)
		if err != nil {
			t.Fatalf("stored intent not found: %v", err)
		}
		if stored.ProviderReference == nil || *stored.ProviderReference != "A-99" {
			t.Error("provider reference was not persisted onto the stored intent")
		}
	})
}

func TestPaymentInitiation_InitiateInvoice(t *testing.T) {
	ctx := context.Background()

	setup := func() *initiationTestDeps {
		deps := newInitiationDeps()
		deps.inv.Save(ctx, nil, &model.Invoice{ID: "inv-1", TenantID: "tenant-1", Total: 10000, Currency: "IRR", Status: model.InvoiceStatusOpen})
		deps.enableGateway("tenant-1")
		return deps
	}

	t.Run("should initiate a partial payment against the issuing tenant", func(t *testing.T) {
		deps := setup()

		intent, _, err := deps.uc().InitiateInvoice(ctx, "inv-1", 4000, model.GatewayZarinPal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.TenantID != "tenant-1" {
			t.Errorf("invoice payment tenant should be the issuer, got %s", intent.TenantID)
		}
		if intent.Target.Type != model.TargetInvoice || intent.Target.Ref != "inv-1" {
			t.Errorf("unexpected target: %+v", intent.Target)
		}
	})

	t.Run("should refuse amounts above the remaining balance", func(t *testing.T) {
		deps := setup()
		deps.credits.CreditInvoice(ctx, nil, "inv-1", 8000, model.GatewayZarinPal, "ref-prev")

		_, _, err := deps.uc().InitiateInvoice(ctx, "inv-1", 4000, model.GatewayZarinPal)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should refuse payments against a settled invoice", func(t *testing.T) {
		deps := setup()
		deps.credits.CreditInvoice(ctx, nil, "inv-1", 10000, model.GatewayZarinPal, "ref-full")

		_, _, err := deps.uc().InitiateInvoice(ctx, "inv-1", 1, model.GatewayZarinPal)
		if !errors.Is(err, domain.ErrInvoiceSettled) {
			t.Errorf("expected ErrInvoiceSettled, got %v", err)
		}
	})

	t.Run("should refuse non-positive amounts", func(t *testing.T) {
		deps := setup()

		for _, amount := range []int64{0, -100} {
			_, _, err := deps.uc().InitiateInvoice(ctx, "inv-1", amount, model.GatewayZarinPal)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("amount %d: expected ErrInvalidArgument, got %v", amount, err)
			}
		}
	})
}
