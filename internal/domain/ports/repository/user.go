package repository

import (
	"context"
	"time"

	"homeaura-subscription/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

// UserRepository stores accounts together with their embedded subscription.
// Every subscription mutation is a conditional update; the bool results
// report whether this caller's write won.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)

	// SetSubscription overwrites the user's subscription unconditionally.
	SetSubscription(ctx context.Context, tx Tx, userID string, s *model.Subscription) error
	// ExpireIfDue flips an active subscription whose end date is <= now to
	// expired. A winning call also appends a history row.
	ExpireIfDue(ctx context.Context, tx Tx, userID string, now time.Time) (bool, error)
	// RenewIfDue replaces the subscription only while it is still active and
	// still ends at expectedEnd.
	RenewIfDue(ctx context.Context, tx Tx, userID string, expectedEnd time.Time, s *model.Subscription) (bool, error)
	// CancelIfActive cancels an active or pending subscription. A winning call
	// also appends a history row.
	CancelIfActive(ctx context.Context, tx Tx, userID, reason string, now time.Time) (bool, error)
	// ListHistory returns the user's subscription changes, newest first.
	ListHistory(ctx context.Context, tx Tx, userID string, limit int) ([]model.SubscriptionChange, error)

	// ListDueForExpiry pages through active subscriptions ending at or before now, ordered by id.
	ListDueForExpiry(ctx context.Context, tx Tx, now time.Time, afterID string, limit int) ([]*model.User, error)
	// ListRenewingBetween returns active auto-renewing subscriptions ending in (from, to].
	ListRenewingBetween(ctx context.Context, tx Tx, from, to time.Time, afterID string, limit int) ([]*model.User, error)
}
