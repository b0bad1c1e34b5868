//go:build !integration

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"homeaura-subscription/internal/config"
	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	auth    *AuthManager
	pay     *fakePaymentUC
	subs    *fakeSubscriptionUC
	users   *fakeUserUC
	access  *fakeAccess
	limiter *fakeLimiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:    NewAuthManager("test-jwt-secret", time.Hour),
		pay:     &fakePaymentUC{},
		subs:    &fakeSubscriptionUC{},
		users:   &fakeUserUC{},
		access:  &fakeAccess{allowed: map[string]bool{}},
		limiter: &fakeLimiter{},
	}
	cfg := config.HTTPConfig{RequestTimeout: 5 * time.Second, InitiateLimit: 2, InitiateWindow: time.Minute}
	env.srv = NewServer(cfg, Deps{
		Payments:      env.pay,
		Subscriptions: env.subs,
		Users:         env.users,
		Access:        env.access,
		Auth:          env.auth,
		Limiter:       env.limiter,
	}, newTestLogger())
	env.handler = env.srv.Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		tok, err := e.auth.Mint(userID, model.RoleUser)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no token -> 401", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/v1/subscription", "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		var body errorBody
		decodeBody(t, rr, &body)
		if body.Code != "AUTHENTICATION_REQUIRED" {
			t.Errorf("code = %q", body.Code)
		}
	})

	t.Run("wrong secret -> 401", func(t *testing.T) {
		other := NewAuthManager("another-secret", time.Hour)
		tok, _ := other.Mint("u1", model.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("expired token -> 401", func(t *testing.T) {
		past := NewAuthManager("test-jwt-secret", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, _ := past.Mint("u1", model.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("trace id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
		req.Header.Set("X-Request-ID", "trace-abc")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		if got := rr.Header().Get("X-Request-ID"); got != "trace-abc" {
			t.Errorf("X-Request-ID = %q", got)
		}
	})
}

func TestContactGate(t *testing.T) {
	env := newTestEnv(t)
	env.users.owner = &model.User{
		ID:    "owner-1",
		Name:  "Asha",
		Email: "asha@example.com",
		Phone: model.Phone{Primary: "9876543210"},
	}
	env.access.allowed["subscriber"] = true

	t.Run("without subscription -> 403 with redirect", func(t *testing.T) {
		// Act
		rr := env.do(t, http.MethodGet, "/api/v1/users/owner-1/contact", "free-user", nil)

		// Assert
		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
		var body errorBody
		decodeBody(t, rr, &body)
		if body.Code != "SUBSCRIPTION_REQUIRED" || body.Redirect != "/subscription" {
			t.Errorf("body = %+v", body)
		}
		if strings.Contains(rr.Body.String(), "9876543210") {
			t.Error("contact leaked in denial")
		}
	})

	t.Run("with subscription -> unmasked contact", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/v1/users/owner-1/contact", "subscriber", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var c model.Contact
		decodeBody(t, rr, &c)
		if c.PrimaryPhone != "9876543210" || c.Masked {
			t.Errorf("contact = %+v", c)
		}
	})

	t.Run("preview is masked for anyone signed in", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/v1/users/owner-1/contact/preview", "free-user", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var c model.Contact
		decodeBody(t, rr, &c)
		if !c.Masked || c.PrimaryPhone == "9876543210" {
			t.Errorf("contact = %+v", c)
		}
	})

	t.Run("unknown owner -> 404", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/v1/users/nobody/contact", "subscriber", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}

func TestPaymentInitiate(t *testing.T) {
	t.Run("returns provider url", func(t *testing.T) {
		// Arrange
		env := newTestEnv(t)
		env.pay.initiateOut = &usecase.InitiateOutput{RedirectURL: "https://pay.example/abc", TransactionID: "TXN1"}

		// Act
		rr := env.do(t, http.MethodPost, "/api/v1/payment/initiate", "u1",
			map[string]any{"planId": "basic", "amount": 499, "propertyId": "prop-9"})

		// Assert
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var out initiateResponse
		decodeBody(t, rr, &out)
		if out.URL != "https://pay.example/abc" || out.TransactionID != "TXN1" {
			t.Errorf("response = %+v", out)
		}
		if env.pay.lastInput.UserID != "u1" || env.pay.lastInput.PropertyID != "prop-9" || env.pay.lastInput.Amount != 499 {
			t.Errorf("input = %+v", env.pay.lastInput)
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			name   string
			err    error
			status int
			code   string
		}{
			{"validation", domain.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
			{"unknown plan", domain.ErrUnknownPlan, http.StatusBadRequest, "UNKNOWN_PLAN"},
			{"provider refused", domain.ErrPaymentInitiation, http.StatusBadGateway, "PAYMENT_INITIATION_FAILED"},
			{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				env := newTestEnv(t)
				env.pay.initiateErr = tc.err
				rr := env.do(t, http.MethodPost, "/api/v1/payment/initiate", "u1", map[string]any{"planId": "basic", "amount": 499})
				if rr.Code != tc.status {
					t.Fatalf("expected %d, got %d", tc.status, rr.Code)
				}
				var body errorBody
				decodeBody(t, rr, &body)
				if body.Code != tc.code {
					t.Errorf("code = %q, want %q", body.Code, tc.code)
				}
			})
		}
	})

	t.Run("malformed json -> 400", func(t *testing.T) {
		env := newTestEnv(t)
		tok, _ := env.auth.Mint("u1", model.RoleUser)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/initiate", strings.NewReader("{not json"))
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("rate limited after limit", func(t *testing.T) {
		env := newTestEnv(t)
		env.pay.initiateOut = &usecase.InitiateOutput{RedirectURL: "https://pay.example/abc", TransactionID: "TXN1"}
		body := map[string]any{"planId": "basic", "amount": 499}

		for i := 0; i < 2; i++ {
			if rr := env.do(t, http.MethodPost, "/api/v1/payment/initiate", "u1", body); rr.Code != http.StatusOK {
				t.Fatalf("call %d: expected 200, got %d", i, rr.Code)
			}
		}
		rr := env.do(t, http.MethodPost, "/api/v1/payment/initiate", "u1", body)
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rr.Code)
		}
		// Another user has their own budget.
		if rr := env.do(t, http.MethodPost, "/api/v1/payment/initiate", "u2", body); rr.Code != http.StatusOK {
			t.Fatalf("other user: expected 200, got %d", rr.Code)
		}
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		env := newTestEnv(t)
		env.limiter.err = errors.New("redis down")
		env.pay.initiateOut = &usecase.InitiateOutput{RedirectURL: "https://pay.example/abc", TransactionID: "TXN1"}
		rr := env.do(t, http.MethodPost, "/api/v1/payment/initiate", "u1", map[string]any{"planId": "basic", "amount": 499})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})
}

func TestPaymentCallback(t *testing.T) {
	t.Run("forged -> 400 INVALID_SIGNATURE", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", strings.NewReader(`{"code":"PAYMENT_SUCCESS"}`))
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
		var body errorBody
		decodeBody(t, rr, &body)
		if body.Code != "INVALID_SIGNATURE" {
			t.Errorf("code = %q", body.Code)
		}
	})

	t.Run("signed -> success", func(t *testing.T) {
		env := newTestEnv(t)
		env.pay.callbackRes = &usecase.ApplyResult{
			Intent:  &model.PaymentIntent{TransactionID: "TXN1", Status: model.PaymentStatusSucceeded, Currency: "INR", Amount: 499},
			Applied: true,
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", strings.NewReader(`{"code":"PAYMENT_SUCCESS"}`))
		req.Header.Set("X-VERIFY", "abc###1")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("unknown intent -> 404", func(t *testing.T) {
		env := newTestEnv(t)
		env.pay.callbackErr = domain.ErrIntentNotFound
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", strings.NewReader(`{}`))
		req.Header.Set("X-VERIFY", "abc###1")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}

func TestPaymentVerify(t *testing.T) {
	t.Run("missing transaction id -> 400", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(t, http.MethodPost, "/api/v1/payment/verify", "u1", map[string]any{})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("success returns subscription", func(t *testing.T) {
		env := newTestEnv(t)
		plan, _ := model.LookupPlan(model.PlanBasic)
		sub := model.NewActiveSubscription(plan, time.Now(), "TXN1")
		env.pay.verifyRes = &usecase.ApplyResult{
			Intent:       &model.PaymentIntent{TransactionID: "TXN1", Status: model.PaymentStatusSucceeded},
			Subscription: sub,
			Applied:      true,
		}
		rr := env.do(t, http.MethodPost, "/api/v1/payment/verify", "u1", map[string]any{"transactionId": "TXN1"})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var out verifyResponse
		decodeBody(t, rr, &out)
		if !out.Success || out.Status != "SUCCESS" || out.Subscription == nil || out.Subscription.PlanID != model.PlanBasic {
			t.Errorf("response = %+v", out)
		}
	})

	t.Run("failed payment reports success false", func(t *testing.T) {
		env := newTestEnv(t)
		env.pay.verifyRes = &usecase.ApplyResult{
			Intent:  &model.PaymentIntent{TransactionID: "TXN2", Status: model.PaymentStatusFailed},
			Applied: true,
		}
		rr := env.do(t, http.MethodPost, "/api/v1/payment/verify", "u1", map[string]any{"transactionId": "TXN2"})
		var out verifyResponse
		decodeBody(t, rr, &out)
		if out.Success || out.Status != "FAILED" {
			t.Errorf("response = %+v", out)
		}
	})
}

func TestSubscriptionRoutes(t *testing.T) {
	plan, _ := model.LookupPlan(model.PlanPremium)

	t.Run("status reports access and days", func(t *testing.T) {
		env := newTestEnv(t)
		env.subs.user = &model.User{ID: "u1", Subscription: model.NewActiveSubscription(plan, time.Now(), "TXN1")}
		rr := env.do(t, http.MethodGet, "/api/v1/subscription", "u1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var out subscriptionStatusResponse
		decodeBody(t, rr, &out)
		if !out.HasAccess || out.DaysRemaining != plan.DurationDays || out.Subscription == nil {
			t.Errorf("response = %+v", out)
		}
	})

	t.Run("status without subscription", func(t *testing.T) {
		env := newTestEnv(t)
		env.subs.user = &model.User{ID: "u1"}
		rr := env.do(t, http.MethodGet, "/api/v1/subscription", "u1", nil)
		var out subscriptionStatusResponse
		decodeBody(t, rr, &out)
		if out.HasAccess || out.DaysRemaining != 0 || out.Subscription != nil {
			t.Errorf("response = %+v", out)
		}
	})

	t.Run("cancel twice", func(t *testing.T) {
		env := newTestEnv(t)
		env.subs.user = &model.User{ID: "u1", Subscription: model.NewActiveSubscription(plan, time.Now(), "TXN1")}

		rr := env.do(t, http.MethodPost, "/api/v1/subscription/cancel", "u1", map[string]any{"reason": "moving"})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		rr = env.do(t, http.MethodPost, "/api/v1/subscription/cancel", "u1", nil)
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("grant forbidden for non-admin", func(t *testing.T) {
		env := newTestEnv(t)
		env.subs.grantErr = domain.ErrForbidden
		rr := env.do(t, http.MethodPost, "/api/v1/subscription/subscribe", "u1", map[string]any{"planId": "basic"})
		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("history lists the caller's changes", func(t *testing.T) {
		env := newTestEnv(t)
		changed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		env.subs.history = []model.SubscriptionChange{
			{UserID: "u1", PlanID: model.PlanBasic, Status: model.SubscriptionStatusExpired, ChangedAt: changed},
			{UserID: "u2", PlanID: model.PlanPremium, Status: model.SubscriptionStatusCancelled, ChangedAt: changed},
		}

		rr := env.do(t, http.MethodGet, "/api/v1/subscription/history?limit=5", "u1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var out struct {
			History []historyView `json:"history"`
		}
		decodeBody(t, rr, &out)
		if len(out.History) != 1 || out.History[0].Status != "expired" || !out.History[0].ChangedAt.Equal(changed) {
			t.Errorf("history = %+v", out.History)
		}
		if env.subs.lastLimit != 5 {
			t.Errorf("limit = %d", env.subs.lastLimit)
		}

		if rr := env.do(t, http.MethodGet, "/api/v1/subscription/history?limit=0", "u1", nil); rr.Code != http.StatusBadRequest {
			t.Errorf("limit=0: expected 400, got %d", rr.Code)
		}
	})

	t.Run("plans are public", func(t *testing.T) {
		env := newTestEnv(t)
		rr := env.do(t, http.MethodGet, "/api/v1/plans", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var out struct {
			Plans []usecase.PlanView `json:"plans"`
		}
		decodeBody(t, rr, &out)
		if len(out.Plans) != len(model.Plans()) {
			t.Errorf("plans = %d", len(out.Plans))
		}
	})
}

func TestRegister_IssuesToken(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"name": "Ravi", "email": "ravi@example.com", "password": "secret123", "phone": "9000000001",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var out authResponse
	decodeBody(t, rr, &out)
	if out.User.Email != "ravi@example.com" || out.User.Role != "user" {
		t.Errorf("user = %+v", out.User)
	}
	claims, err := env.auth.parse(out.Token)
	if err != nil || claims.UserID != out.User.ID {
		t.Fatalf("token does not identify user: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.srv.health = map[string]HealthChecker{
		"postgres": func(_ context.Context) error { return nil },
		"redis":    func(_ context.Context) error { return errors.New("down") },
	}
	rr := env.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestRegister_RejectsInvalidFields(t *testing.T) {
	cases := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"bad email", map[string]any{"name": "Ravi", "email": "not-an-email", "password": "secret123", "phone": "9000000001"}, "email"},
		{"short password", map[string]any{"name": "Ravi", "email": "ravi@example.com", "password": "abc", "phone": "9000000001"}, "password"},
		{"missing phone", map[string]any{"name": "Ravi", "email": "ravi@example.com", "password": "secret123"}, "phone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do(t, http.MethodPost, "/api/v1/auth/register", "", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			var body errorBody
			decodeBody(t, rr, &body)
			if body.Code != "VALIDATION_ERROR" || !strings.Contains(body.Error, tc.field) {
				t.Errorf("body = %+v", body)
			}
		})
	}
}
