package repository

import (
	"context"
	"time"

	"saas-payment-core/internal/domain/model"
)

// CallbackLogRepository durably records every inbound callback before it is
// processed, so a provider can be answered 200 even when business-level
// handling rejects the payload later.
type CallbackLogRepository interface {
	Record(ctx context.Context, tx Tx, gateway model.Gateway, externalRef string, payload []byte, receivedAt time.Time) error
}
