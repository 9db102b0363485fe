package payment

import (
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/adapter"
	"saas-payment-core/internal/usecase"
)

var _ usecase.GatewayRegistry = (*Registry)(nil)

// Registry maps gateway identifiers to their adapter. The set of adapters is
// fixed at startup; per-tenant enablement happens through credentials, never
// by mutating the registry.
type Registry struct {
	adapters map[model.Gateway]adapter.GatewayAdapter
}

func NewRegistry(adapters ...adapter.GatewayAdapter) *Registry {
	m := make(map[model.Gateway]adapter.GatewayAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Lookup(gw model.Gateway) (adapter.GatewayAdapter, bool) {
	a, ok := r.adapters[gw]
	return a, ok
}
