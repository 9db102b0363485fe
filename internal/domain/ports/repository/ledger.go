package repository

import (
	"context"

	"saas-payment-core/internal/domain/model"
)

// LedgerRepository is the append-only record of invoice crediting.
type LedgerRepository interface {
	// InsertIfAbsent inserts the entry unless one already exists for the same
	// (invoice_id, external_reference) pair. It reports whether a row was
	// actually inserted. Insert-if-absent, not insert-then-check.
	InsertIfAbsent(ctx context.Context, tx Tx, e *model.LedgerEntry) (bool, error)
	// SumByInvoice returns the total credited amount for an invoice, derived
	// from the full ledger on every call.
	SumByInvoice(ctx context.Context, tx Tx, invoiceID string) (int64, error)
	ListByInvoice(ctx context.Context, tx Tx, invoiceID string) ([]*model.LedgerEntry, error)
}
