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

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Assignment(ctx context.Context, tx repository.Tx, userID string) (*model.PlanAssignment, error) {
	const q = `SELECT user_id, plan_id, billing_cycle, expires_at, updated_at FROM plan_assignments WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	a := &model.PlanAssignment{}
	if err := row.Scan(&a.UserID, &a.PlanID, &a.Cycle, &a.ExpiresAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

// UpsertAssignment overwrites the user's plan and expiry wholesale. One row
// per user; a replayed activation writes the same values it would have
// written the first time.
func (r *subscriptionRepo) UpsertAssignment(ctx context.Context, tx repository.Tx, a *model.PlanAssignment) error {
	const q = `
INSERT INTO plan_assignments (user_id, plan_id, billing_cycle, expires_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id) DO UPDATE SET
  plan_id=$2, billing_cycle=$3, expires_at=$4, updated_at=$5;`

	_, err := execSQL(ctx, r.pool, tx, q, a.UserID, a.PlanID, a.Cycle, a.ExpiresAt, a.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	metrics.IncCredit("plan_subscription")
	return nil
}
