package usecase

import (
	"homeaura-subscription/internal/domain/model"
)

// PlanView is the public shape of a plan.
type PlanView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DurationDays int    `json:"durationDays"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
}

// ListPlans returns the static plan table.
func ListPlans() []PlanView {
	plans := model.Plans()
	out := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		out = append(out, PlanView{
			ID:           p.ID,
			Name:         p.Name,
			DurationDays: p.DurationDays,
			Price:        p.Price,
			Currency:     p.Currency,
		})
	}
	return out
}
