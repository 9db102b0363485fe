package payment

import (
	"context"
	"fmt"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/adapter"
)

var _ adapter.GatewayAdapter = (*NoopGateway)(nil)

// NoopGateway short-circuits the provider round-trip for local development
// and tests: Initiate redirects straight back to the callback URL and Confirm
// approves whatever amount the intent asked for. Never enable it for a live
// tenant.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() model.Gateway { return model.GatewayNoop }

func (g *NoopGateway) Initiate(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error) {
	return &model.InitiationResult{
		RedirectURL:       fmt.Sprintf("%s?order_id=%s&status=OK", intent.Meta["callback_url"], intent.ExternalReference),
		ExternalReference: intent.ExternalReference,
	}, nil
}

func (g *NoopGateway) Reference(cb *model.Callback) (string, error) {
	if ref := cb.Query["order_id"]; ref != "" {
		return ref, nil
	}
	return "", fmt.Errorf("noop: callback carries no order id: %w", domain.ErrInvalidArgument)
}

func (g *NoopGateway) Confirm(ctx context.Context, cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error) {
	outcome := model.OutcomeSucceeded
	if cb.Query["status"] != "OK" {
		outcome = model.OutcomeFailed
	}
	return &model.ConfirmationResult{
		ExternalReference: intent.ExternalReference,
		Outcome:           outcome,
		ProviderReference: "noop-" + intent.ExternalReference,
		ConfirmedAmount:   intent.Amount,
		ConfirmedCurrency: intent.Currency,
	}, nil
}
