package repository

import (
	"context"

	"saas-payment-core/internal/domain/model"
)

// SubscriptionRepository holds each user's current plan assignment.
// UpsertAssignment overwrites plan and expiry wholesale.
type SubscriptionRepository interface {
	Assignment(ctx context.Context, tx Tx, userID string) (*model.PlanAssignment, error)
	UpsertAssignment(ctx context.Context, tx Tx, a *model.PlanAssignment) error
}
