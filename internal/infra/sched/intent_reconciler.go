package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/adapter"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/usecase"
)

// IntentReconciler periodically sweeps stale pending intents and tries to
// finalize them by re-querying the provider's status API. This covers the
// cases where the callback never arrived or the process crashed mid-confirm.
// Intents pending longer than abandonAfter are failed outright; the CAS
// transition keeps the sweep safe against a late callback racing it.
type IntentReconciler struct {
	intents      repository.IntentRepository
	resolver     usecase.CredentialResolver
	gateways     usecase.GatewayRegistry
	engine       usecase.ReconciliationEngine
	interval     time.Duration
	staleAfter   time.Duration
	abandonAfter time.Duration
	log          *zerolog.Logger
}

func NewIntentReconciler(
	intents repository.IntentRepository,
	resolver usecase.CredentialResolver,
	gateways usecase.GatewayRegistry,
	engine usecase.ReconciliationEngine,
	interval, staleAfter, abandonAfter time.Duration,
	logger *zerolog.Logger,
) *IntentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if abandonAfter <= 0 {
		abandonAfter = 24 * time.Hour
	}
	return &IntentReconciler{
		intents:      intents,
		resolver:     resolver,
		gateways:     gateways,
		engine:       engine,
		interval:     interval,
		staleAfter:   staleAfter,
		abandonAfter: abandonAfter,
		log:          logger,
	}
}

func (w *IntentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *IntentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.intents.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("intent-reconciler: list pending failed")
		return
	}
	abandonCutoff := time.Now().Add(-w.abandonAfter)
	for _, in := range pending {
		if in.CreatedAt.Before(abandonCutoff) {
			w.abandon(ctx, in)
			continue
		}
		w.requery(ctx, in)
	}
}

// requery asks the provider for the intent's settled status and feeds the
// answer through the same engine callbacks use. Adapters without a status API
// are skipped; their intents wait for a callback or abandonment.
func (w *IntentReconciler) requery(ctx context.Context, in *model.PaymentIntent) {
	ad, ok := w.gateways.Lookup(in.Gateway)
	if !ok {
		return
	}
	querier, ok := ad.(adapter.StatusQuerier)
	if !ok {
		return
	}

	creds, configured, err := w.resolver.Resolve(ctx, in.TenantID, in.Gateway)
	if err != nil || !configured {
		return
	}

	res, err := querier.QueryStatus(ctx, in, creds)
	if err != nil {
		w.log.Warn().Err(err).Str("external_ref", in.ExternalReference).
			Str("gateway", string(in.Gateway)).Msg("intent-reconciler: status re-query failed")
		return
	}
	if err := w.engine.Apply(ctx, res); err != nil {
		w.log.Error().Err(err).Str("external_ref", in.ExternalReference).Msg("intent-reconciler: apply failed")
		return
	}
	w.log.Info().Str("external_ref", in.ExternalReference).Str("outcome", string(res.Outcome)).
		Msg("intent-reconciler: reconciled")
}

func (w *IntentReconciler) abandon(ctx context.Context, in *model.PaymentIntent) {
	applied, err := w.intents.TransitionIfPending(ctx, repository.NoTX, in.ExternalReference, model.IntentStateFailed, nil, time.Now())
	if err != nil {
		w.log.Error().Err(err).Str("external_ref", in.ExternalReference).Msg("intent-reconciler: abandon failed")
		return
	}
	if applied {
		w.log.Info().Str("external_ref", in.ExternalReference).
			Time("created_at", in.CreatedAt).Msg("intent-reconciler: abandoned stale intent")
	}
}
