package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the single entitlement record embedded in a user.
// A new successful purchase overwrites it; it is never appended to.
type Subscription struct {
	ID                 string
	PlanID             string
	PlanName           string
	Price              int64
	Status             SubscriptionStatus
	StartDate          time.Time
	EndDate            *time.Time // nil means open-ended
	TransactionID      string     // intent that last activated it
	AutoRenew          bool
	CancellationReason string
	LastBillingDate    *time.Time
	NextBillingDate    *time.Time
	UpdatedAt          time.Time
}

// NewActiveSubscription builds the record written after a successful payment.
func NewActiveSubscription(plan Plan, now time.Time, txnID string) *Subscription {
	s := &Subscription{ID: uuid.NewString()}
	s.Renew(plan, now, txnID)
	s.AutoRenew = true
	return s
}

// IsActive reports whether the subscription grants access at now.
func (s *Subscription) IsActive(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}

// DaysRemaining rounds up to whole days; zero when not active.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.IsActive(now) || s.EndDate == nil {
		return 0
	}
	left := s.EndDate.Sub(now).Hours() / 24
	return int(math.Ceil(left))
}

// DueForExpiry matches the sweep predicate: active with an end date at or before now.
func (s *Subscription) DueForExpiry(now time.Time) bool {
	return s != nil && s.Status == SubscriptionStatusActive && s.EndDate != nil && !s.EndDate.After(now)
}

// Renew restarts the validity window at now for the plan's duration.
func (s *Subscription) Renew(plan Plan, now time.Time, txnID string) {
	end := now.Add(plan.Duration())
	billed := now
	s.PlanID = plan.ID
	s.PlanName = plan.Name
	s.Price = plan.Price
	s.Status = SubscriptionStatusActive
	s.StartDate = now
	s.EndDate = &end
	s.TransactionID = txnID
	s.CancellationReason = ""
	s.LastBillingDate = &billed
	s.NextBillingDate = &end
	s.UpdatedAt = now
}

func (s *Subscription) Cancel(reason string, now time.Time) {
	s.Status = SubscriptionStatusCancelled
	s.AutoRenew = false
	s.CancellationReason = reason
	s.NextBillingDate = nil
	s.UpdatedAt = now
}

func (s *Subscription) Expire(now time.Time) {
	s.Status = SubscriptionStatusExpired
	s.AutoRenew = false
	s.NextBillingDate = nil
	s.UpdatedAt = now
}

// SubscriptionChange is one row of a user's subscription history, written
// when the sweep expires a subscription or the user cancels it.
type SubscriptionChange struct {
	UserID         string
	SubscriptionID string
	PlanID         string
	Status         SubscriptionStatus
	StartDate      time.Time
	EndDate        *time.Time
	TransactionID  string
	Reason         string
	ChangedAt      time.Time
}
