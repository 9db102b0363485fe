// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/infra/logging"
)

// Compile-time check
var _ ReconciliationEngine = (*reconciliationEngine)(nil)

// ReconciliationEngine turns verified confirmations into intent state
// transitions and, exactly once per external reference, the matching crediting
// side effect. Gateways deliver at-least-once: a browser redirect and the
// provider's webhook may race for the same reference, and either may be
// replayed. Correctness rests on the intent repository's conditional
// transition being a single atomic compare-and-set.
type ReconciliationEngine interface {
	Apply(ctx context.Context, res *model.ConfirmationResult) error
}

type reconciliationEngine struct {
	intents   repository.IntentRepository
	credits   *CreditingActions
	tm        repository.TransactionManager
	tolerance int64 // max acceptable minor-unit difference between confirmed and recorded amount
	log       *zerolog.Logger
}

func NewReconciliationEngine(
	intents repository.IntentRepository,
	credits *CreditingActions,
	tm repository.TransactionManager,
	tolerance int64,
	logger *zerolog.Logger,
) *reconciliationEngine {
	if tolerance < 0 {
		tolerance = 0
	}
	return &reconciliationEngine{intents: intents, credits: credits, tm: tm, tolerance: tolerance, log: logger}
}

// Apply runs the state machine for one confirmation. It returns an error only
// for storage failures; every business-level rejection (unknown reference,
// duplicate delivery, amount mismatch) resolves internally and is not an error
// to the caller, so webhook endpoints can keep answering the provider 200.
func (e *reconciliationEngine) Apply(ctx context.Context, res *model.ConfirmationResult) error {
	defer logging.TraceDuration(e.log, "ReconciliationEngine.Apply")()

	intent, err := e.intents.FindByExternalReference(ctx, repository.NoTX, res.ExternalReference)
	if err == domain.ErrNotFound {
		// Replay of a foreign or garbage callback. Discard.
		e.log.Warn().Str("external_ref", res.ExternalReference).Msg("confirmation for unknown reference discarded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup intent: %w", err)
	}

	if intent.State.Terminal() {
		// Duplicate delivery against a resolved intent is a no-op by design.
		return nil
	}

	switch res.Outcome {
	case model.OutcomePending:
		// Provider has not settled yet; leave the intent pending.
		return nil
	case model.OutcomeFailed:
		return e.resolve(ctx, intent, res, model.IntentStateRejected)
	case model.OutcomeSucceeded:
		if !e.amountMatches(intent, res) {
			// An attacker paying a trivial amount must not settle a large
			// invoice. Force failed, never credit, flag for manual review.
			e.log.Error().Str("external_ref", res.ExternalReference).
				Int64("expected", intent.Amount).Str("expected_currency", intent.Currency).
				Int64("confirmed", res.ConfirmedAmount).Str("confirmed_currency", res.ConfirmedCurrency).
				Msg("amount mismatch, intent forced to failed for manual review")
			return e.resolve(ctx, intent, res, model.IntentStateFailed)
		}
		return e.approveAndCredit(ctx, intent, res)
	default:
		return fmt.Errorf("%w: outcome %q", domain.ErrInvalidArgument, res.Outcome)
	}
}

func (e *reconciliationEngine) amountMatches(intent *model.PaymentIntent, res *model.ConfirmationResult) bool {
	if res.ConfirmedCurrency != "" && res.ConfirmedCurrency != intent.Currency {
		return false
	}
	diff := res.ConfirmedAmount - intent.Amount
	if diff < 0 {
		diff = -diff
	}
	return diff <= e.tolerance
}

// resolve applies a terminal non-credited state via the CAS transition.
func (e *reconciliationEngine) resolve(ctx context.Context, intent *model.PaymentIntent, res *model.ConfirmationResult, state model.IntentState) error {
	var providerRef *string
	if res.ProviderReference != "" {
		providerRef = &res.ProviderReference
	}
	applied, err := e.intents.TransitionIfPending(ctx, repository.NoTX, intent.ExternalReference, state, providerRef, time.Now())
	if err != nil {
		return fmt.Errorf("transition intent: %w", err)
	}
	if applied {
		e.log.Info().Str("external_ref", intent.ExternalReference).Str("state", string(state)).Msg("intent resolved")
	}
	return nil
}

// approveAndCredit performs transition-then-credit inside one transaction,
// gated on the CAS result. Only the caller that wins the compare-and-set runs
// the crediting action; concurrent and duplicate deliveries observe
// applied=false and do nothing.
func (e *reconciliationEngine) approveAndCredit(ctx context.Context, intent *model.PaymentIntent, res *model.ConfirmationResult) error {
	var providerRef *string
	if res.ProviderReference != "" {
		providerRef = &res.ProviderReference
	}

	return e.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		applied, err := e.intents.TransitionIfPending(ctx, tx, intent.ExternalReference, model.IntentStateApproved, providerRef, time.Now())
		if err != nil {
			return fmt.Errorf("transition intent: %w", err)
		}
		if !applied {
			return nil
		}

		switch intent.Target.Type {
		case model.TargetInvoice:
			err = e.credits.CreditInvoice(ctx, tx, intent.Target.Ref, intent.Amount, intent.Gateway, intent.ExternalReference)
		case model.TargetPlanSubscription:
			err = e.credits.ActivateSubscription(ctx, tx, intent.UserID, intent.Target.Ref, intent.Target.Cycle)
		default:
			err = fmt.Errorf("%w: target type %q", domain.ErrInvalidArgument, intent.Target.Type)
		}
		if err != nil {
			return err
		}

		e.log.Info().Str("external_ref", intent.ExternalReference).
			Str("target_type", string(intent.Target.Type)).Str("target_ref", intent.Target.Ref).
			Int64("amount", intent.Amount).Str("currency", intent.Currency).Msg("intent approved and credited")
		return nil
	})
}
