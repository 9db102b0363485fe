package postgres

import (
	"errors"
	"time"

	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/infra/metrics"
)

var _ repository.IntentRepository = (*intentRepo)(nil)

type intentRepo struct{ pool *pgxpool.Pool }

func NewIntentRepo(pool *pgxpool.Pool) *intentRepo {
	return &intentRepo{pool: pool}
}

const intentColumns = `id, tenant_id, user_id, target_type, target_ref, billing_cycle, gateway, external_reference, provider_reference, amount, currency, state, meta, created_at, updated_at, resolved_at`

func (r *intentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  id, tenant_id, user_id, target_type, target_ref, billing_cycle, gateway, external_reference, provider_reference, amount, currency, state, meta, created_at, updated_at, resolved_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  provider_reference=$9, state=$12, meta=$13, updated_at=$15, resolved_at=$16;`

	_, err := execSQL(ctx, r.pool, tx, q,
		in.ID, in.TenantID, in.UserID, in.Target.Type, in.Target.Ref, nullCycle(in.Target.Cycle),
		in.Gateway, in.ExternalReference, in.ProviderReference, in.Amount, in.Currency,
		in.State, in.Meta, in.CreatedAt, in.UpdatedAt, in.ResolvedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *intentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	return r.findOne(ctx, tx, `SELECT `+intentColumns+` FROM payment_intents WHERE id=$1;`, id)
}

func (r *intentRepo) FindByExternalReference(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentIntent, error) {
	return r.findOne(ctx, tx, `SELECT `+intentColumns+` FROM payment_intents WHERE external_reference=$1 LIMIT 1;`, ref)
}

func (r *intentRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.PaymentIntent, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	in, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return in, nil
}

func (r *intentRepo) SetProviderReference(ctx context.Context, tx repository.Tx, id string, providerRef string) error {
	const q = `UPDATE payment_intents SET provider_reference=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, providerRef)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// TransitionIfPending atomically resolves an intent only when it is still
// pending. A single conditional UPDATE, not read-then-write: this is the
// operation that makes concurrent and duplicate confirmations safe.
func (r *intentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, externalRef string, state model.IntentState, providerRef *string, resolvedAt time.Time) (bool, error) {
	const q = `
    UPDATE payment_intents
       SET state = $2,
           provider_reference = COALESCE($3, provider_reference),
           resolved_at = $4,
           updated_at = NOW()
     WHERE external_reference = $1
       AND state = 'pending'`

	cmd, err := execSQL(ctx, r.pool, tx, q, externalRef, string(state), providerRef, resolvedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	applied := cmd.RowsAffected() >= 1
	if applied {
		metrics.IncIntentResolved(string(state))
	}
	return applied, nil
}

func (r *intentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE state='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case pgx.ErrNoRows:
			return nil, domain.ErrNotFound
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, in)
	}
	return out, nil
}

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	in := &model.PaymentIntent{}
	var cycle *string
	if err := row.Scan(&in.ID, &in.TenantID, &in.UserID, &in.Target.Type, &in.Target.Ref, &cycle,
		&in.Gateway, &in.ExternalReference, &in.ProviderReference, &in.Amount, &in.Currency,
		&in.State, &in.Meta, &in.CreatedAt, &in.UpdatedAt, &in.ResolvedAt); err != nil {
		return nil, err
	}
	if cycle != nil {
		in.Target.Cycle = model.BillingCycle(*cycle)
	}
	return in, nil
}

func nullCycle(c model.BillingCycle) *string {
	if c == "" {
		return nil
	}
	s := string(c)
	return &s
}
