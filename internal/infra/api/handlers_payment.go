package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/infra/logging"
	"homeaura-subscription/internal/infra/metrics"
	"homeaura-subscription/internal/usecase"
)

const maxCallbackBytes = 64 << 10

type initiateRequest struct {
	PlanID     string `json:"planId" validate:"required"`
	Amount     int64  `json:"amount" validate:"gt=0"`
	ReturnURL  string `json:"returnUrl" validate:"omitempty,url"`
	PropertyID string `json:"propertyId" validate:"max=64"`
}

type initiateResponse struct {
	URL           string `json:"url"`
	TransactionID string `json:"transactionId"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.payUC.Initiate(r.Context(), usecase.InitiateInput{
		UserID:     userIDFrom(r.Context()),
		PlanID:     req.PlanID,
		Amount:     req.Amount,
		ReturnURL:  req.ReturnURL,
		PropertyID: req.PropertyID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentInitiation) {
			metrics.IncPayment("rejected")
		}
		s.writeError(w, r, err)
		return
	}
	metrics.IncPayment("initiated")
	writeJSON(w, http.StatusOK, initiateResponse{URL: out.RedirectURL, TransactionID: out.TransactionID})
}

// handleCallback receives the provider push. The raw body is what the
// X-VERIFY header signs, so it is passed through undecoded.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		metrics.IncCallback("fail", "bad_payload")
		s.writeError(w, r, domain.ErrValidation)
		return
	}

	res, err := s.payUC.HandleCallback(r.Context(), raw, r.Header.Get("X-VERIFY"))
	if err != nil {
		metrics.IncCallback("fail", callbackReason(err))
		s.writeError(w, r, err)
		return
	}
	metrics.IncCallback("ok", "")
	if res.Applied {
		metrics.ObserveSettlement(settlementLabel(res), res.Intent.Currency, res.Intent.Amount)
	}
	logging.With(r.Context(), s.log).Info().
		Str("transaction_id", res.Intent.TransactionID).
		Str("status", string(res.Intent.Status)).
		Bool("applied", res.Applied).
		Msg("payment callback processed")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func callbackReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return "bad_signature"
	case errors.Is(err, domain.ErrValidation):
		return "bad_payload"
	case errors.Is(err, domain.ErrIntentNotFound), errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}

type verifyRequest struct {
	TransactionID string `json:"transactionId"`
}

type verifyResponse struct {
	Success       bool              `json:"success"`
	Status        string            `json:"status"`
	TransactionID string            `json:"transactionId"`
	Subscription  *subscriptionView `json:"subscription,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, reason := "ok", ""
	defer func() {
		metrics.PaymentVerifyRequests.WithLabelValues(result, reason).Inc()
		metrics.PaymentVerifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		result, reason = "fail", "bad_json"
		s.writeError(w, r, err)
		return
	}
	if req.TransactionID == "" {
		result, reason = "fail", "missing_txn"
		s.writeError(w, r, domain.ErrValidation)
		return
	}

	res, err := s.payUC.VerifyStatus(r.Context(), userIDFrom(r.Context()), req.TransactionID)
	if err != nil {
		result = "fail"
		switch {
		case errors.Is(err, domain.ErrIntentNotFound):
			reason = "not_found"
		case errors.Is(err, domain.ErrValidation):
			reason = "missing_txn"
		default:
			reason = "provider_error"
		}
		s.writeError(w, r, err)
		return
	}
	if res.Applied {
		metrics.ObserveSettlement(settlementLabel(res), res.Intent.Currency, res.Intent.Amount)
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Success:       res.Intent.Status == model.PaymentStatusSucceeded,
		Status:        string(res.Intent.Status),
		TransactionID: res.Intent.TransactionID,
		Subscription:  toSubscriptionView(res.Subscription),
	})
}

// queryLimit reads ?limit=, 1..100, default 20.
func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 20, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 100 {
		return 0, fmt.Errorf("%w: limit must be 1..100", domain.ErrValidation)
	}
	return n, nil
}

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	intents, err := s.payUC.ListIntents(r.Context(), userIDFrom(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]intentView, 0, len(intents))
	for _, p := range intents {
		out = append(out, toIntentView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"intents": out})
}

// settlementLabel is the bounded metrics status of an applied outcome.
func settlementLabel(res *usecase.ApplyResult) string {
	switch res.Intent.Status {
	case model.PaymentStatusSucceeded:
		return "success"
	case model.PaymentStatusCancelled:
		return "cancelled"
	}
	return "failed"
}
