package redis

import (
	"context"
	"encoding/json"
	"time"

	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/usecase"
)

var _ usecase.CredentialCache = (*CredentialCache)(nil)

// CredentialCache keeps decrypted tenant credential sets in Redis for a short
// TTL so the hot callback path does not hit Postgres on every delivery.
// Misses and Redis failures both read through to the store.
type CredentialCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewCredentialCache(client RedisClient, ttl time.Duration) *CredentialCache {
	return &CredentialCache{
		client: client,
		ttl:    ttl,
	}
}

func key(tenantID string, gateway model.Gateway) string {
	return "credentials:" + tenantID + ":" + string(gateway)
}

func (c *CredentialCache) Get(ctx context.Context, tenantID string, gateway model.Gateway) (*model.CredentialSet, bool) {
	data, err := c.client.Get(ctx, key(tenantID, gateway))
	if err != nil {
		return nil, false
	}
	var cs model.CredentialSet
	if err := json.Unmarshal([]byte(data), &cs); err != nil {
		return nil, false
	}
	return &cs, true
}

func (c *CredentialCache) Put(ctx context.Context, cs *model.CredentialSet) {
	data, err := json.Marshal(cs)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(cs.TenantID, cs.Gateway), data, c.ttl)
}

// Invalidate drops a tenant's cached credentials, e.g. after rotation.
func (c *CredentialCache) Invalidate(ctx context.Context, tenantID string, gateway model.Gateway) error {
	return c.client.Del(ctx, key(tenantID, gateway))
}
