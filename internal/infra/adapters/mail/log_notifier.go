package mail

import (
	"context"

	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.Notifier = (*LogNotifier)(nil)

// LogNotifier records notices instead of mailing them. Used when mail is
// disabled, and in dev unless mail.send_in_dev is set.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "LogNotifier").Logger()
	return &LogNotifier{log: &l}
}

func (n *LogNotifier) SubscriptionActivated(ctx context.Context, u *model.User) error {
	n.log.Info().Str("user_id", u.ID).Msg("subscription activated notice")
	return nil
}

func (n *LogNotifier) SubscriptionRenewed(ctx context.Context, u *model.User) error {
	n.log.Info().Str("user_id", u.ID).Msg("subscription renewed notice")
	return nil
}

func (n *LogNotifier) SubscriptionExpired(ctx context.Context, u *model.User, sub model.Subscription) error {
	n.log.Info().Str("user_id", u.ID).Str("plan", sub.PlanID).Msg("subscription expired notice")
	return nil
}

func (n *LogNotifier) RenewalNotice(ctx context.Context, u *model.User, daysUntilRenewal int) error {
	n.log.Info().Str("user_id", u.ID).Int("days", daysUntilRenewal).Msg("renewal notice")
	return nil
}
