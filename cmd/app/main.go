// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"homeaura-subscription/internal/config"
	"homeaura-subscription/internal/domain/ports/adapter"
	"homeaura-subscription/internal/infra/adapters/mail"
	payAdapters "homeaura-subscription/internal/infra/adapters/payment"
	tele "homeaura-subscription/internal/infra/adapters/telegram"
	"homeaura-subscription/internal/infra/api"
	pg "homeaura-subscription/internal/infra/db/postgres"
	"homeaura-subscription/internal/infra/logging"
	"homeaura-subscription/internal/infra/metrics"
	red "homeaura-subscription/internal/infra/redis"
	"homeaura-subscription/internal/infra/sched"
	"homeaura-subscription/internal/usecase"
)

// Set by -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no email unless send_in_dev)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL, 10*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker
		limiter api.RateLimiter
		health  = map[string]api.HealthChecker{"postgres": pool.Ping}
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		health["redis"] = redisClient.Ping
	} else {
		logger.Warn().Msg("redis.url not set; sweep runs unlocked and initiate is not rate limited")
	}

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	intentRepo := pg.NewPaymentRepo(pool)
	noticeRepo := pg.NewNotificationLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Adapters ----
	gateway := newGateway(cfg, logger)

	var notifier adapter.Notifier
	if cfg.MailActive() {
		notifier = mail.NewMailNotifier(cfg.Mail, cfg.Payment.PublicURL, cfg.Runtime.Dev, logger)
	} else {
		notifier = mail.NewLogNotifier(logger)
	}

	var alerter adapter.OpsAlerter = tele.NewNoopAlerter(logger)
	if cfg.Telegram.Token != "" && len(cfg.Telegram.ChatIDs) > 0 {
		ops, err := tele.NewOpsAlerter(cfg.Telegram, "homeaura-subscription", logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram alerter disabled")
		} else {
			alerter = ops
		}
	}

	// ---- Use cases ----
	var subOpts []usecase.SubscriptionOption
	if locker != nil {
		subOpts = append(subOpts, usecase.WithLocker(locker))
	}
	subUC := usecase.NewSubscriptionUseCase(userRepo, intentRepo, tm, gateway, notifier, usecase.SubscriptionConfig{
		SweepBatchSize: cfg.Scheduler.SweepBatchSize,
		SweepLockTTL:   cfg.Scheduler.SweepLockTTL,
	}, logger, subOpts...)
	payUC := usecase.NewPaymentUseCase(userRepo, intentRepo, subUC, gateway, logger, usecase.WithAlerter(alerter))
	accessUC := usecase.NewAccessUseCase(userRepo, logger)
	userUC := usecase.NewUserUseCase(userRepo, accessUC, tm, logger)
	noticeUC := usecase.NewNotificationUseCase(userRepo, noticeRepo, notifier, cfg.Scheduler.RenewalNoticeDays, logger)

	// ---- Scheduled jobs ----
	expiry, err := sched.NewExpiryWorker(sched.ExpiryWorkerConfig{
		Spec:       cfg.Scheduler.ExpiryCron,
		Timezone:   cfg.Scheduler.Timezone,
		RunTimeout: cfg.Scheduler.RunTimeout,
	}, subUC, noticeUC, alerter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("expiry worker")
	}
	go func() {
		if err := expiry.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("expiry worker stopped")
		}
	}()

	reconciler := sched.NewPaymentReconciler(payUC, intentRepo, sched.ReconcilerConfig{
		Interval:   cfg.Scheduler.ReconcileInterval,
		StaleAfter: cfg.Scheduler.ReconcileStaleAfter,
		Batch:      cfg.Scheduler.ReconcileBatch,
		Workers:    cfg.Scheduler.ReconcileWorkers,
	}, logger)
	go func() {
		if err := reconciler.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("payment reconciler stopped")
		}
	}()

	// ---- HTTP ----
	server := api.NewServer(cfg.HTTP, api.Deps{
		Payments:      payUC,
		Subscriptions: subUC,
		Users:         userUC,
		Access:        accessUC,
		Auth:          api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:       limiter,
		Health:        health,
	}, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

// newGateway wires the gateway strictly from payment.environment; there is no
// fallback from production to sandbox.
func newGateway(cfg *config.Config, logger *zerolog.Logger) adapter.PaymentGateway {
	pp := cfg.Payment.PhonePe
	if cfg.IsSandbox() {
		logger.Warn().Msg("payment.environment=sandbox; payments are simulated")
		return payAdapters.NewSandboxGateway(cfg.Payment.PublicURL, payAdapters.NewSigner(pp.SaltKey, pp.SaltIndex))
	}
	gw, err := payAdapters.NewPhonePeGateway(cfg.Payment)
	if err != nil {
		logger.Fatal().Err(err).Msg("phonepe gateway")
	}
	logger.Info().Str("base_url", pp.BaseURL).Str("merchant_id", pp.MerchantID).Msg("payment gateway: phonepe")
	return gw
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.ObserveDBPool(pool.Stat())
		}
	}
}
