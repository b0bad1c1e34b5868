package usecase

import (
	"context"
	"time"

	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/adapter"
	"homeaura-subscription/internal/domain/ports/repository"
	portsuc "homeaura-subscription/internal/domain/ports/usecase"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	portsuc.RenewalNotifier
}

type notificationUC struct {
	users     repository.UserRepository
	notices   repository.NotificationLogRepository
	notifier  adapter.Notifier
	lookahead time.Duration
	batch     int
	log       *zerolog.Logger
}

func NewNotificationUseCase(users repository.UserRepository, notices repository.NotificationLogRepository, notifier adapter.Notifier, lookaheadDays int, logger *zerolog.Logger) *notificationUC {
	if lookaheadDays <= 0 {
		lookaheadDays = 7
	}
	compLog := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{
		users:     users,
		notices:   notices,
		notifier:  notifier,
		lookahead: time.Duration(lookaheadDays) * 24 * time.Hour,
		batch:     defaultSweepBatch,
		log:       &compLog,
	}
}

// NotifyUpcomingRenewals sends one notice per user and renewal date for
// auto-renewing subscriptions that end within the lookahead window.
func (n *notificationUC) NotifyUpcomingRenewals(ctx context.Context, now time.Time) (int, error) {
	sent := 0
	afterID := ""
	for {
		batch, err := n.users.ListRenewingBetween(ctx, repository.NoTX, now, now.Add(n.lookahead), afterID, n.batch)
		if err != nil {
			return sent, err
		}
		for _, usr := range batch {
			if n.notify(ctx, usr, now) {
				sent++
			}
		}
		if len(batch) < n.batch {
			return sent, nil
		}
		afterID = batch[len(batch)-1].ID
		if err := ctx.Err(); err != nil {
			return sent, err
		}
	}
}

func (n *notificationUC) notify(ctx context.Context, usr *model.User, now time.Time) bool {
	sub := usr.Subscription
	if sub == nil || sub.EndDate == nil {
		return false
	}
	bucket := sub.EndDate.UTC().Format("2006-01-02")
	l := n.log.With().Str("user_id", usr.ID).Str("bucket", bucket).Logger()

	claimed, err := n.notices.Claim(ctx, repository.NoTX, usr.ID, repository.NotificationRenewalNotice, bucket)
	if err != nil {
		l.Error().Err(err).Msg("claim renewal notice failed")
		return false
	}
	if !claimed {
		return false
	}
	if err := n.notifier.RenewalNotice(ctx, usr, sub.DaysRemaining(now)); err != nil {
		l.Warn().Err(err).Msg("renewal notice delivery failed; releasing claim")
		if err := n.notices.Release(ctx, repository.NoTX, usr.ID, repository.NotificationRenewalNotice, bucket); err != nil {
			l.Error().Err(err).Msg("release renewal notice claim failed")
		}
		return false
	}
	return true
}
