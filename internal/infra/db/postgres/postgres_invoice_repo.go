package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
)

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

func (r *invoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	const q = `
INSERT INTO invoices (id, tenant_id, number, total, currency, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  number=$3, total=$4, currency=$5, status=$6, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, inv.ID, inv.TenantID, inv.Number, inv.Total, inv.Currency, inv.Status, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	const q = `SELECT id, tenant_id, number, total, currency, status, created_at, updated_at FROM invoices WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	inv := &model.Invoice{}
	if err := row.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.Total, &inv.Currency, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return inv, nil
}

func (r *invoiceRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.InvoiceStatus) error {
	const q = `UPDATE invoices SET status=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
