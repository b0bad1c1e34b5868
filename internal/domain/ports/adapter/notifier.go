package adapter

import (
	"context"

	"homeaura-subscription/internal/domain/model"
)

// Notifier delivers subscription lifecycle messages to the account holder.
type Notifier interface {
	SubscriptionActivated(ctx context.Context, u *model.User) error
	SubscriptionRenewed(ctx context.Context, u *model.User) error
	SubscriptionExpired(ctx context.Context, u *model.User, sub model.Subscription) error
	RenewalNotice(ctx context.Context, u *model.User, daysUntilRenewal int) error
}
