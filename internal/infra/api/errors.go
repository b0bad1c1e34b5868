package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/infra/logging"
)

const (
	codeInternal             = "INTERNAL_ERROR"
	codeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
)

type errorBody struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Redirect string `json:"redirect,omitempty"`
}

// errorTable maps domain sentinels to HTTP status and a stable code. First match wins.
var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrAuthenticationRequired, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{domain.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "VALIDATION_ERROR"},
	{domain.ErrUnknownPlan, http.StatusBadRequest, "UNKNOWN_PLAN"},
	{domain.ErrInvalidSignature, http.StatusBadRequest, "INVALID_SIGNATURE"},
	{domain.ErrPaymentInitiation, http.StatusBadGateway, "PAYMENT_INITIATION_FAILED"},
	{domain.ErrIntentNotFound, http.StatusNotFound, "INTENT_NOT_FOUND"},
	{domain.ErrSubscriptionRequired, http.StatusForbidden, codeSubscriptionRequired},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{domain.ErrNoActiveSubscription, http.StatusConflict, "NO_ACTIVE_SUBSCRIPTION"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			body := errorBody{Error: err.Error(), Code: e.code}
			if e.code == codeSubscriptionRequired {
				body.Error = "An active subscription is required to view owner contact details"
				body.Redirect = "/subscription"
			}
			if e.status >= http.StatusInternalServerError {
				logging.With(r.Context(), s.log).Warn().Err(err).Msg("upstream failure")
			}
			writeJSON(w, e.status, body)
			return
		}
	}
	logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: codeInternal})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads at most 1 MiB into v and checks its `validate` tags.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrValidation)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
		}
		return fmt.Errorf("%w: invalid %s", domain.ErrValidation, strings.Join(fields, ", "))
	}
	return nil
}
