package api

import (
	"time"

	"homeaura-subscription/internal/domain/model"
)

// Wire shapes. Domain structs carry no json tags; the edge owns the casing.

type subscriptionView struct {
	ID                 string     `json:"id"`
	PlanID             string     `json:"planId"`
	PlanName           string     `json:"planName"`
	Price              int64      `json:"price"`
	Status             string     `json:"status"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            *time.Time `json:"endDate,omitempty"`
	TransactionID      string     `json:"transactionId,omitempty"`
	AutoRenew          bool       `json:"autoRenew"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	LastBillingDate    *time.Time `json:"lastBillingDate,omitempty"`
	NextBillingDate    *time.Time `json:"nextBillingDate,omitempty"`
}

func toSubscriptionView(s *model.Subscription) *subscriptionView {
	if s == nil {
		return nil
	}
	return &subscriptionView{
		ID:                 s.ID,
		PlanID:             s.PlanID,
		PlanName:           s.PlanName,
		Price:              s.Price,
		Status:             string(s.Status),
		StartDate:          s.StartDate,
		EndDate:            s.EndDate,
		TransactionID:      s.TransactionID,
		AutoRenew:          s.AutoRenew,
		CancellationReason: s.CancellationReason,
		LastBillingDate:    s.LastBillingDate,
		NextBillingDate:    s.NextBillingDate,
	}
}

type historyView struct {
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	PlanID         string     `json:"planId"`
	Status         string     `json:"status"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	TransactionID  string     `json:"transactionId,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	ChangedAt      time.Time  `json:"changedAt"`
}

func toHistoryView(c model.SubscriptionChange) historyView {
	return historyView{
		SubscriptionID: c.SubscriptionID,
		PlanID:         c.PlanID,
		Status:         string(c.Status),
		StartDate:      c.StartDate,
		EndDate:        c.EndDate,
		TransactionID:  c.TransactionID,
		Reason:         c.Reason,
		ChangedAt:      c.ChangedAt,
	}
}

type intentView struct {
	TransactionID string     `json:"transactionId"`
	PlanID        string     `json:"planId"`
	Kind          string     `json:"kind"`
	Provider      string     `json:"provider"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	PropertyID    string     `json:"propertyId,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

func toIntentView(p *model.PaymentIntent) intentView {
	return intentView{
		TransactionID: p.TransactionID,
		PlanID:        p.PlanID,
		Kind:          string(p.Kind),
		Provider:      p.Provider,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		PropertyID:    p.Metadata.PropertyID,
		Error:         p.Error,
		CreatedAt:     p.CreatedAt,
		PaidAt:        p.PaidAt,
	}
}

type userView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Role         string            `json:"role"`
	Subscription *subscriptionView `json:"subscription,omitempty"`
}

func toUserView(u *model.User) userView {
	return userView{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		Subscription: toSubscriptionView(u.Subscription),
	}
}
