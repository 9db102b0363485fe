package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
)

var _ repository.CallbackLogRepository = (*callbackLogRepo)(nil)

type callbackLogRepo struct{ pool *pgxpool.Pool }

func NewCallbackLogRepo(pool *pgxpool.Pool) *callbackLogRepo {
	return &callbackLogRepo{pool: pool}
}

func (r *callbackLogRepo) Record(ctx context.Context, tx repository.Tx, gateway model.Gateway, externalRef string, payload []byte, receivedAt time.Time) error {
	const q = `INSERT INTO callback_events (id, gateway, external_reference, payload, received_at) VALUES ($1,$2,$3,$4,$5);`
	_, err := execSQL(ctx, r.pool, tx, q, uuid.NewString(), gateway, externalRef, payload, receivedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
