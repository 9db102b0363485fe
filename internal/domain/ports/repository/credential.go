package repository

import (
	"context"

	"saas-payment-core/internal/domain/model"
)

// CredentialRepository stores per-tenant gateway configuration. Find returns
// domain.ErrNotFound when the tenant never configured the gateway.
type CredentialRepository interface {
	Find(ctx context.Context, tx Tx, tenantID string, gateway model.Gateway) (*model.CredentialSet, error)
	Save(ctx context.Context, tx Tx, cs *model.CredentialSet) error
	Delete(ctx context.Context, tx Tx, tenantID string, gateway model.Gateway) error
}
