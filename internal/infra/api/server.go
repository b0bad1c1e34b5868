package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"homeaura-subscription/internal/config"
	"homeaura-subscription/internal/usecase"
)

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HealthChecker pings a dependency for /health.
type HealthChecker func(ctx context.Context) error

// Server is the public HTTP surface: payments, subscriptions, plans and contacts.
type Server struct {
	cfg     config.HTTPConfig
	payUC   usecase.PaymentUseCase
	subUC   usecase.SubscriptionUseCase
	userUC  usecase.UserUseCase
	access  usecase.AccessUseCase
	auth    *AuthManager
	limiter RateLimiter
	health  map[string]HealthChecker
	log     *zerolog.Logger
	srv     *http.Server
}

type Deps struct {
	Payments      usecase.PaymentUseCase
	Subscriptions usecase.SubscriptionUseCase
	Users         usecase.UserUseCase
	Access        usecase.AccessUseCase
	Auth          *AuthManager
	Limiter       RateLimiter // optional
	Health        map[string]HealthChecker
}

func NewServer(cfg config.HTTPConfig, d Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		cfg:     cfg,
		payUC:   d.Payments,
		subUC:   d.Subscriptions,
		userUC:  d.Users,
		access:  d.Access,
		auth:    d.Auth,
		limiter: d.Limiter,
		health:  d.Health,
		log:     &l,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.cfg.RequestTimeout))

		r.Get("/plans", s.handlePlans)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		// Authenticated by X-VERIFY, not by bearer token.
		r.Post("/payment/callback", s.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.Authenticate)

			r.With(s.RateLimit("payment_initiate")).Post("/payment/initiate", s.handleInitiate)
			r.Post("/payment/verify", s.handleVerify)
			r.Get("/payment/intents", s.handleListIntents)

			r.Get("/subscription", s.handleGetSubscription)
			r.Get("/subscription/history", s.handleHistory)
			r.Post("/subscription/cancel", s.handleCancel)
			r.Post("/subscription/subscribe", s.handleGrant)

			r.Get("/users/{id}/contact/preview", s.handleContactPreview)
			r.With(s.RequireSubscription).Get("/users/{id}/contact", s.handleContact)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.health))
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}
