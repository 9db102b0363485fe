// File: internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/infra/logging"
)

// Compile-time check
var _ CallbackProcessor = (*callbackProcessor)(nil)

// CallbackProcessor handles one raw inbound confirmation: it durably records
// the payload, finds the intent by the external reference the adapter embedded
// at initiate time (no tenant scanning, ever), resolves that tenant's
// credentials, lets the adapter authenticate and normalize the payload, and
// hands the result to the reconciliation engine.
//
// It performs no trust decisions itself; authenticity checks live in the
// adapter, next to the scheme that defines them.
type CallbackProcessor interface {
	Process(ctx context.Context, gateway model.Gateway, cb *model.Callback) error
}

type callbackProcessor struct {
	intents  repository.IntentRepository
	log      repository.CallbackLogRepository
	resolver CredentialResolver
	gateways GatewayRegistry
	engine   ReconciliationEngine
	logger   *zerolog.Logger
}

func NewCallbackProcessor(
	intents repository.IntentRepository,
	cbLog repository.CallbackLogRepository,
	resolver CredentialResolver,
	gateways GatewayRegistry,
	engine ReconciliationEngine,
	logger *zerolog.Logger,
) *callbackProcessor {
	return &callbackProcessor{intents: intents, log: cbLog, resolver: resolver, gateways: gateways, engine: engine, logger: logger}
}

func (p *callbackProcessor) Process(ctx context.Context, gateway model.Gateway, cb *model.Callback) error {
	adapter, ok := p.gateways.Lookup(gateway)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownGateway, gateway)
	}

	ref, err := adapter.Reference(cb)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	ctx = logging.WithIntentRef(ctx, ref)

	// Record first. The provider gets its 200 once the payload is durable,
	// regardless of how business-level processing goes.
	if err := p.log.Record(ctx, repository.NoTX, gateway, ref, cb.Body, cb.ReceivedAt); err != nil {
		return fmt.Errorf("record callback: %w", err)
	}

	intent, err := p.intents.FindByExternalReference(ctx, repository.NoTX, ref)
	if err == domain.ErrNotFound {
		logging.With(ctx, p.logger).Warn().Str("gateway", string(gateway)).Msg("callback for unknown reference discarded")
		return nil
	}
	if err != nil {
		return err
	}
	ctx = logging.WithTenantID(ctx, intent.TenantID)

	creds, configured, err := p.resolver.Resolve(ctx, intent.TenantID, gateway)
	if err != nil {
		return err
	}
	if !configured {
		// Tenant disabled the gateway after initiating. Without credentials
		// nothing can be authenticated; leave the intent pending.
		logging.With(ctx, p.logger).Error().Str("gateway", string(gateway)).
			Msg("callback for unconfigured gateway, cannot verify")
		return domain.ErrGatewayNotConfigured
	}

	res, err := adapter.Confirm(ctx, cb, intent, creds)
	if err != nil {
		// Authenticity failures and unreachable providers both leave the
		// intent pending; a later trustworthy callback (or the reconciler)
		// can still settle it. Nothing unverified reaches the engine.
		return err
	}

	return p.engine.Apply(ctx, res)
}
