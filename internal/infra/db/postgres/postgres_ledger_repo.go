package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/infra/metrics"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

// InsertIfAbsent relies on the unique index over (invoice_id,
// external_reference): ON CONFLICT DO NOTHING, with RowsAffected telling the
// caller whether this delivery was the first.
func (r *ledgerRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (bool, error) {
	const q = `
INSERT INTO invoice_ledger (id, invoice_id, amount, gateway, external_reference, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (invoice_id, external_reference) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, e.ID, e.InvoiceID, e.Amount, e.Gateway, e.ExternalReference, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	inserted := cmd.RowsAffected() >= 1
	if inserted {
		metrics.IncCredit("invoice")
		metrics.AddCreditedAmount(string(e.Gateway), e.Amount)
	}
	return inserted, nil
}

func (r *ledgerRepo) SumByInvoice(ctx context.Context, tx repository.Tx, invoiceID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM invoice_ledger WHERE invoice_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, invoiceID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *ledgerRepo) ListByInvoice(ctx context.Context, tx repository.Tx, invoiceID string) ([]*model.LedgerEntry, error) {
	const q = `SELECT id, invoice_id, amount, gateway, external_reference, created_at FROM invoice_ledger WHERE invoice_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, invoiceID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		e := new(model.LedgerEntry)
		if err := rows.Scan(&e.ID, &e.InvoiceID, &e.Amount, &e.Gateway, &e.ExternalReference, &e.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}
