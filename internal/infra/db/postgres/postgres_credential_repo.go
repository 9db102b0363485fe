package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/infra/security"
)

var _ repository.CredentialRepository = (*credentialRepo)(nil)

// credentialRepo stores per-tenant gateway credentials with the secret map
// encrypted at rest (AES-GCM over the serialized JSON).
type credentialRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
}

func NewCredentialRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *credentialRepo {
	return &credentialRepo{pool: pool, enc: enc}
}

func (r *credentialRepo) Find(ctx context.Context, tx repository.Tx, tenantID string, gateway model.Gateway) (*model.CredentialSet, error) {
	const q = `SELECT tenant_id, gateway, mode, enabled, secrets, updated_at FROM gateway_credentials WHERE tenant_id=$1 AND gateway=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, gateway)
	if err != nil {
		return nil, err
	}

	cs := &model.CredentialSet{}
	var cipher string
	if err := row.Scan(&cs.TenantID, &cs.Gateway, &cs.Mode, &cs.Enabled, &cipher, &cs.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	plain, err := r.enc.Decrypt(cipher)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	if err := json.Unmarshal([]byte(plain), &cs.Secrets); err != nil {
		return nil, domain.ErrOperationFailed
	}
	return cs, nil
}

func (r *credentialRepo) Save(ctx context.Context, tx repository.Tx, cs *model.CredentialSet) error {
	raw, err := json.Marshal(cs.Secrets)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	cipher, err := r.enc.Encrypt(string(raw))
	if err != nil {
		return domain.ErrOperationFailed
	}

	const q = `
INSERT INTO gateway_credentials (tenant_id, gateway, mode, enabled, secrets, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (tenant_id, gateway) DO UPDATE SET
  mode=$3, enabled=$4, secrets=$5, updated_at=NOW();`

	if _, err := execSQL(ctx, r.pool, tx, q, cs.TenantID, cs.Gateway, cs.Mode, cs.Enabled, cipher); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *credentialRepo) Delete(ctx context.Context, tx repository.Tx, tenantID string, gateway model.Gateway) error {
	const q = `DELETE FROM gateway_credentials WHERE tenant_id=$1 AND gateway=$2;`
	if _, err := execSQL(ctx, r.pool, tx, q, tenantID, gateway); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
