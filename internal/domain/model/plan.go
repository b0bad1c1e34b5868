package model

import (
	"fmt"
	"time"

	"homeaura-subscription/internal/domain"
)

// Plan is one entry of the static plan table. Prices are in whole rupees.
type Plan struct {
	ID           string
	Name         string
	DurationDays int
	Price        int64
	Currency     string
}

const (
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

var planTable = []Plan{
	{ID: PlanBasic, Name: "Basic", DurationDays: 30, Price: 499, Currency: "INR"},
	{ID: PlanPremium, Name: "Premium", DurationDays: 90, Price: 1299, Currency: "INR"},
	{ID: PlanEnterprise, Name: "Enterprise", DurationDays: 365, Price: 3999, Currency: "INR"},
}

// Duration is the validity granted by one successful purchase or renewal.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// LookupPlan returns the plan for id or wraps domain.ErrUnknownPlan.
func LookupPlan(id string) (Plan, error) {
	for _, p := range planTable {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", domain.ErrUnknownPlan, id)
}

// Plans returns a copy of the plan table in display order.
func Plans() []Plan {
	out := make([]Plan, len(planTable))
	copy(out, planTable)
	return out
}
