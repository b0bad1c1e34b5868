package api

import (
	"errors"
	"net/http"
	"time"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/infra/logging"
	"homeaura-subscription/internal/infra/metrics"
	"homeaura-subscription/internal/usecase"
)

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": usecase.ListPlans()})
}

type subscriptionStatusResponse struct {
	Subscription  *subscriptionView `json:"subscription"`
	HasAccess     bool              `json:"hasAccess"`
	DaysRemaining int               `json:"daysRemaining"`
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	usr, err := s.subUC.Get(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := time.Now()
	writeJSON(w, http.StatusOK, subscriptionStatusResponse{
		Subscription:  toSubscriptionView(usr.Subscription),
		HasAccess:     usecase.HasAccess(usr, now),
		DaysRemaining: usr.Subscription.DaysRemaining(now),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	changes, err := s.subUC.History(r.Context(), userIDFrom(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]historyView, 0, len(changes))
	for _, c := range changes {
		out = append(out, toHistoryView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	// An empty body cancels without a reason.
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	sub, err := s.subUC.Cancel(r.Context(), userIDFrom(r.Context()), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "subscription": toSubscriptionView(sub)})
}

type grantRequest struct {
	PlanID string `json:"planId" validate:"required"`
	UserID string `json:"userId"`
}

// handleGrant activates a plan without payment. The use case re-reads the
// caller's role from the store; the token role is not trusted.
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	actorID := userIDFrom(r.Context())
	sub, err := s.subUC.Grant(r.Context(), actorID, req.UserID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			metrics.IncAdminGrant("forbidden")
		default:
			metrics.IncAdminGrant("error")
		}
		s.writeError(w, r, err)
		return
	}
	metrics.IncAdminGrant("granted")
	logging.With(r.Context(), s.log).Info().Str("target_user_id", req.UserID).Str("plan_id", req.PlanID).Msg("admin grant")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "subscription": toSubscriptionView(sub)})
}
