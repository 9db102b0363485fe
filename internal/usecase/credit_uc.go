// File: internal/usecase/credit_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
)

// CreditingActions are the two idempotent side effects of a successful
// payment. Both are safe to invoke more than once for the same external
// reference: the ledger insert is guarded by a uniqueness constraint and the
// plan assignment is an overwrite computed from the current time.
type CreditingActions struct {
	ledger   repository.LedgerRepository
	invoices repository.InvoiceRepository
	plans    repository.PlanRepository
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewCreditingActions(
	ledger repository.LedgerRepository,
	invoices repository.InvoiceRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	logger *zerolog.Logger,
) *CreditingActions {
	return &CreditingActions{ledger: ledger, invoices: invoices, plans: plans, subs: subs, log: logger}
}

// CreditInvoice appends a ledger entry (insert-if-absent on the
// (invoice_id, external_reference) pair) and recomputes the invoice's
// paid/remaining position from the full ledger. Totals are derived, not
// incrementally mutated, so replays cannot drift them.
func (c *CreditingActions) CreditInvoice(ctx context.Context, tx repository.Tx, invoiceID string, amount int64, gateway model.Gateway, externalRef string) error {
	entry := &model.LedgerEntry{
		ID:                uuid.NewString(),
		InvoiceID:         invoiceID,
		Amount:            amount,
		Gateway:           gateway,
		ExternalReference: externalRef,
		CreatedAt:         time.Now(),
	}
	inserted, err := c.ledger.InsertIfAbsent(ctx, tx, entry)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if !inserted {
		// Second idempotency barrier: even a double-invoked crediting action
		// cannot double-credit.
		c.log.Info().Str("invoice_id", invoiceID).Str("external_ref", externalRef).Msg("ledger entry already present, skipping credit")
		return nil
	}

	inv, err := c.invoices.FindByID(ctx, tx, invoiceID)
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}
	paid, err := c.ledger.SumByInvoice(ctx, tx, invoiceID)
	if err != nil {
		return fmt.Errorf("sum ledger: %w", err)
	}

	status := model.InvoiceStatusOpen
	switch {
	case paid >= inv.Total:
		status = model.InvoiceStatusPaid
	case paid > 0:
		status = model.InvoiceStatusPartial
	}
	if status != inv.Status {
		if err := c.invoices.UpdateStatus(ctx, tx, invoiceID, status); err != nil {
			return fmt.Errorf("update invoice status: %w", err)
		}
	}

	c.log.Info().Str("invoice_id", invoiceID).Int64("amount", amount).Int64("paid", paid).
		Str("status", string(status)).Str("external_ref", externalRef).Msg("invoice credited")
	return nil
}

// ActivateSubscription assigns the plan and recomputes the expiry from the
// current time, not additively from the previous expiry, so a duplicate
// confirmation cannot extend the subscription twice.
func (c *CreditingActions) ActivateSubscription(ctx context.Context, tx repository.Tx, userID, planID string, cycle model.BillingCycle) error {
	if _, err := c.plans.FindByID(ctx, tx, planID); err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	now := time.Now()
	expires := now.AddDate(0, 1, 0)
	if cycle == model.CycleYearly {
		expires = now.AddDate(1, 0, 0)
	}
	a := &model.PlanAssignment{
		UserID:    userID,
		PlanID:    planID,
		Cycle:     cycle,
		ExpiresAt: expires,
		UpdatedAt: now,
	}
	if err := c.subs.UpsertAssignment(ctx, tx, a); err != nil {
		return fmt.Errorf("assign plan: %w", err)
	}

	c.log.Info().Str("user_id", userID).Str("plan_id", planID).Str("cycle", string(cycle)).
		Time("expires_at", expires).Msg("subscription activated")
	return nil
}

// InvoiceBalance returns the invoice's remaining amount, derived from the
// ledger on every read.
func (c *CreditingActions) InvoiceBalance(ctx context.Context, tx repository.Tx, invoiceID string) (int64, error) {
	inv, err := c.invoices.FindByID(ctx, tx, invoiceID)
	if err != nil {
		return 0, err
	}
	paid, err := c.ledger.SumByInvoice(ctx, tx, invoiceID)
	if err != nil {
		return 0, err
	}
	remaining := inv.Total - paid
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
