package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/ports/adapter"
	portsuc "homeaura-subscription/internal/domain/ports/usecase"
	"homeaura-subscription/internal/infra/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ExpiryWorker runs the expiry sweep and the renewal notices on a cron schedule,
// plus once at startup.
type ExpiryWorker struct {
	spec       string
	loc        *time.Location
	runTimeout time.Duration
	sweeper    portsuc.SubscriptionSweeper
	notifier   portsuc.RenewalNotifier
	alerter    adapter.OpsAlerter
	now        func() time.Time
	log        *zerolog.Logger
}

type ExpiryWorkerConfig struct {
	Spec       string // standard 5-field cron expression
	Timezone   string
	RunTimeout time.Duration
}

func NewExpiryWorker(cfg ExpiryWorkerConfig, sweeper portsuc.SubscriptionSweeper, notifier portsuc.RenewalNotifier, alerter adapter.OpsAlerter, logger *zerolog.Logger) (*ExpiryWorker, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", cfg.Timezone, err)
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("scheduler cron %q: %w", cfg.Spec, err)
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		spec:       cfg.Spec,
		loc:        loc,
		runTimeout: cfg.RunTimeout,
		sweeper:    sweeper,
		notifier:   notifier,
		alerter:    alerter,
		now:        time.Now,
		log:        &exprLog,
	}, nil
}

// Run blocks until ctx is done. Overlapping runs inside one process are skipped
// by the cron chain; across replicas the sweep's own lock does the same.
func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Str("cron", w.spec).Str("tz", w.loc.String()).Msg("Starting expiry worker")

	cl := cronLogger{log: w.log}
	c := cron.New(
		cron.WithLocation(w.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(w.spec, func() { w.RunOnce(ctx) }); err != nil {
		return err
	}

	w.RunOnce(ctx)
	c.Start()

	<-ctx.Done()
	w.log.Info().Msg("Stopping expiry worker")
	<-c.Stop().Done()
	return ctx.Err()
}

// RunOnce performs one sweep followed by the renewal notices under the run timeout.
func (w *ExpiryWorker) RunOnce(parent context.Context) (portsuc.SweepResult, error) {
	if parent.Err() != nil {
		return portsuc.SweepResult{}, parent.Err()
	}
	ctx, cancel := context.WithTimeout(parent, w.runTimeout)
	defer cancel()

	now := w.now()
	res, err := w.sweeper.SweepExpirations(ctx, now)
	switch {
	case errors.Is(err, domain.ErrLockBusy):
		metrics.IncSweepRun("locked")
		w.log.Info().Msg("sweep skipped; another worker holds the lock")
		return res, err
	case err != nil:
		metrics.IncSweepRun("error")
		w.log.Error().Err(err).Msg("expiry sweep failed")
		w.alert(ctx, fmt.Sprintf("Expiry sweep aborted after %d users: %v", res.Scanned, err))
	default:
		metrics.IncSweepRun("ok")
		if res.Failed > 0 {
			w.alert(ctx, fmt.Sprintf("Expiry sweep: %d of %d users failed", res.Failed, res.Scanned))
		}
	}
	if res.Expired > 0 {
		metrics.IncSubscriptionsExpired(res.Expired)
	}
	if res.Renewed > 0 {
		metrics.IncSubscriptionsRenewed("renewed", res.Renewed)
	}

	if w.notifier != nil {
		sent, nerr := w.notifier.NotifyUpcomingRenewals(ctx, now)
		if nerr != nil {
			w.log.Error().Err(nerr).Msg("renewal notices failed")
		}
		if sent > 0 {
			metrics.IncRenewalNotices(sent)
			w.log.Info().Int("count", sent).Msg("renewal notices sent")
		}
	}
	return res, err
}

func (w *ExpiryWorker) alert(ctx context.Context, text string) {
	if w.alerter == nil {
		return
	}
	if err := w.alerter.Alert(context.WithoutCancel(ctx), text); err != nil {
		w.log.Warn().Err(err).Msg("ops alert failed")
	}
}
