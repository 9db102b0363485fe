// File: internal/usecase/credential_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
)

// Compile-time checks
var _ CredentialResolver = (*credentialResolver)(nil)
var _ CredentialStore = (*credentialResolver)(nil)

// CredentialResolver looks up the gateway configuration for a tenant.
// "Not configured" and "disabled" are ordinary outcomes reported via ok=false,
// never an error: callers surface them as "payment method unavailable".
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID string, gateway model.Gateway) (*model.CredentialSet, bool, error)
}

// CredentialStore is the write side of gateway configuration: tenants rotate
// or remove their provider credentials through it. Writes go to the repository
// first and then evict the cached copy, so no node keeps serving rotated-out
// secrets past its cache TTL.
type CredentialStore interface {
	Store(ctx context.Context, cs *model.CredentialSet) error
	Remove(ctx context.Context, tenantID string, gateway model.Gateway) error
}

// CredentialCache is an optional read-through cache in front of the store.
// A nil cache is valid.
type CredentialCache interface {
	Get(ctx context.Context, tenantID string, gateway model.Gateway) (*model.CredentialSet, bool)
	Put(ctx context.Context, cs *model.CredentialSet)
	Invalidate(ctx context.Context, tenantID string, gateway model.Gateway) error
}

type credentialResolver struct {
	creds repository.CredentialRepository
	cache CredentialCache
	log   *zerolog.Logger
}

func NewCredentialResolver(creds repository.CredentialRepository, cache CredentialCache, logger *zerolog.Logger) *credentialResolver {
	return &credentialResolver{creds: creds, cache: cache, log: logger}
}

func (r *credentialResolver) Resolve(ctx context.Context, tenantID string, gateway model.Gateway) (*model.CredentialSet, bool, error) {
	if tenantID == "" || gateway == "" {
		return nil, false, domain.ErrInvalidArgument
	}

	if r.cache != nil {
		if cs, ok := r.cache.Get(ctx, tenantID, gateway); ok {
			return cs, cs.Enabled, nil
		}
	}

	cs, err := r.creds.Find(ctx, repository.NoTX, tenantID, gateway)
	if err == domain.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if r.cache != nil {
		r.cache.Put(ctx, cs)
	}
	if !cs.Enabled {
		r.log.Debug().Str("tenant_id", tenantID).Str("gateway", string(gateway)).Msg("gateway configured but disabled")
		return nil, false, nil
	}
	return cs, true, nil
}

func (r *credentialResolver) Store(ctx context.Context, cs *model.CredentialSet) error {
	if cs == nil || cs.TenantID == "" || cs.Gateway == "" || len(cs.Secrets) == 0 {
		return domain.ErrInvalidArgument
	}
	if err := r.creds.Save(ctx, repository.NoTX, cs); err != nil {
		return err
	}
	r.invalidate(ctx, cs.TenantID, cs.Gateway)
	return nil
}

func (r *credentialResolver) Remove(ctx context.Context, tenantID string, gateway model.Gateway) error {
	if tenantID == "" || gateway == "" {
		return domain.ErrInvalidArgument
	}
	if err := r.creds.Delete(ctx, repository.NoTX, tenantID, gateway); err != nil {
		return err
	}
	r.invalidate(ctx, tenantID, gateway)
	return nil
}

// invalidate is best-effort: the repository is the source of truth and a
// stale cached copy ages out on its TTL, so an eviction failure only
// lengthens the rotation window.
func (r *credentialResolver) invalidate(ctx context.Context, tenantID string, gateway model.Gateway) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, tenantID, gateway); err != nil {
		r.log.Warn().Err(err).Str("tenant_id", tenantID).Str("gateway", string(gateway)).
			Msg("credential cache eviction failed, stale copy lives until TTL")
	}
}
