package usecase

import (
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/adapter"
)

// GatewayRegistry resolves a gateway identifier to its adapter. The binding is
// fixed at startup; adding a provider means adding one variant and one adapter,
// never touching the reconciliation engine.
type GatewayRegistry interface {
	Lookup(gw model.Gateway) (adapter.GatewayAdapter, bool)
}
