package model

import "time"

// SubscriptionPlan is a purchasable plan. Prices are per billing cycle, in
// minor units of Currency.
type SubscriptionPlan struct {
	ID           string
	Name         string
	MonthlyPrice int64
	YearlyPrice  int64
	Currency     string
	Active       bool
	CreatedAt    time.Time
}

// Price returns the charge amount for the given cycle.
func (p *SubscriptionPlan) Price(cycle BillingCycle) int64 {
	if cycle == CycleYearly {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

// PlanAssignment is a user's current plan and expiry. It is overwritten, not
// appended: each successful plan purchase replaces plan and expiry wholesale.
type PlanAssignment struct {
	UserID    string
	PlanID    string
	Cycle     BillingCycle
	ExpiresAt time.Time
	UpdatedAt time.Time
}
