package usecase

import (
	"context"
	"time"

	"homeaura-subscription/internal/domain/model"
)

// SweepResult summarises one expiry sweep.
type SweepResult struct {
	Scanned int
	Expired int
	Renewed int
	Skipped int
	Failed  int
}

// SubscriptionSweeper is what the scheduled expiry job needs from the subscription use case.
type SubscriptionSweeper interface {
	SweepExpirations(ctx context.Context, now time.Time) (SweepResult, error)
}

// RenewalNotifier sends the at-most-once upcoming renewal notices.
type RenewalNotifier interface {
	NotifyUpcomingRenewals(ctx context.Context, now time.Time) (int, error)
}

// PaymentReconciler re-verifies an intent whose callback never arrived.
// applied reports whether this call moved the intent out of PENDING.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, txnID string) (intent *model.PaymentIntent, applied bool, err error)
}
