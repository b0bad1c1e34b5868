package sched

import (
	"context"
	"sync/atomic"
	"time"

	"homeaura-subscription/internal/domain/ports/repository"
	portsuc "homeaura-subscription/internal/domain/ports/usecase"
	"homeaura-subscription/internal/infra/metrics"
	"homeaura-subscription/internal/infra/worker"

	"github.com/rs/zerolog"
)

// PaymentReconciler periodically re-verifies PENDING intents whose callback
// never arrived, through the provider status API.
type PaymentReconciler struct {
	uc         portsuc.PaymentReconciler
	intents    repository.PaymentIntentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending intent must be to retry
	batch      int
	workers    int // concurrent provider status checks
	now        func() time.Time
	log        *zerolog.Logger
}

type ReconcilerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Batch      int
	Workers    int
}

func NewPaymentReconciler(uc portsuc.PaymentReconciler, intents repository.PaymentIntentRepository, cfg ReconcilerConfig, logger *zerolog.Logger) *PaymentReconciler {
	interval, staleAfter, batch, workers := cfg.Interval, cfg.StaleAfter, cfg.Batch, cfg.Workers
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	if workers <= 0 {
		workers = 4
	}
	compLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		uc:         uc,
		intents:    intents,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      batch,
		workers:    workers,
		now:        time.Now,
		log:        &compLog,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick reconciles one batch and returns how many intents settled.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	cutoff := w.now().Add(-w.staleAfter)
	pending, err := w.intents.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending intents failed")
		return 0
	}
	var settled atomic.Int32
	pool := worker.NewPool(w.workers, w.log)
	pool.Start(ctx)
	for _, p := range pending {
		txnID := p.TransactionID
		if err := pool.Submit(ctx, func(ctx context.Context) error {
			if w.reconcile(ctx, txnID) {
				settled.Add(1)
			}
			return nil
		}); err != nil {
			break
		}
	}
	pool.Stop()
	return int(settled.Load())
}

func (w *PaymentReconciler) reconcile(ctx context.Context, txnID string) bool {
	intent, applied, err := w.uc.Reconcile(ctx, txnID)
	if err != nil {
		w.log.Warn().Err(err).Str("transaction_id", txnID).Msg("reconcile failed")
		return false
	}
	if !applied {
		return false
	}
	metrics.ObserveSettlement(string(intent.Status), intent.Currency, intent.Amount)
	w.log.Info().Str("transaction_id", txnID).Str("status", string(intent.Status)).Msg("intent reconciled")
	return true
}
