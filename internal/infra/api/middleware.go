package api

import (
	"errors"
	"net/http"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/infra/logging"
	"homeaura-subscription/internal/infra/metrics"
	red "homeaura-subscription/internal/infra/redis"
)

// RateLimit caps calls per user and route. Without a limiter, or when Redis
// errors, requests pass.
func (s *Server) RateLimit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil || s.cfg.InitiateLimit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := s.limiter.Allow(r.Context(), red.UserRouteKey(userIDFrom(r.Context()), route), s.cfg.InitiateLimit, s.cfg.InitiateWindow)
			if err != nil {
				logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.IncRateLimitTriggered(route)
				s.writeError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSubscription is the access gate for paid routes. It answers 403
// SUBSCRIPTION_REQUIRED with a redirect hint when the caller has no active plan.
func (s *Server) RequireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := s.access.Require(r.Context(), userIDFrom(r.Context()))
		switch {
		case errors.Is(err, domain.ErrSubscriptionRequired):
			metrics.IncAccessDecision("denied")
			s.writeError(w, r, err)
			return
		case errors.Is(err, domain.ErrAuthenticationRequired):
			metrics.IncAccessDecision("anonymous")
			s.writeError(w, r, err)
			return
		case err != nil:
			s.writeError(w, r, err)
			return
		}
		metrics.IncAccessDecision("allowed")
		next.ServeHTTP(w, r)
	})
}
