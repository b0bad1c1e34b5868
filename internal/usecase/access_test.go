//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/usecase"
)

func TestHasAccess(t *testing.T) {
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	future := at.Add(time.Hour)
	past := at.Add(-time.Hour)

	withSub := func(status model.SubscriptionStatus, end *time.Time) *model.User {
		u := newTestUser("x")
		u.Subscription = &model.Subscription{Status: status, EndDate: end}
		return u
	}

	cases := []struct {
		name string
		user *model.User
		want bool
	}{
		{"nil user", nil, false},
		{"no subscription", newTestUser("x"), false},
		{"active future end", withSub(model.SubscriptionStatusActive, &future), true},
		{"active open ended", withSub(model.SubscriptionStatusActive, nil), true},
		{"active past end", withSub(model.SubscriptionStatusActive, &past), false},
		{"active ends exactly now", withSub(model.SubscriptionStatusActive, &at), false},
		{"pending", withSub(model.SubscriptionStatusPending, &future), false},
		{"expired", withSub(model.SubscriptionStatusExpired, &future), false},
		{"cancelled", withSub(model.SubscriptionStatusCancelled, &future), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := usecase.HasAccess(tc.user, at); got != tc.want {
				t.Errorf("HasAccess = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAccessUseCase_Require(t *testing.T) {
	ctx := context.Background()
	users := NewMockUserRepo()
	paid := newTestUser("paid")
	paid.Subscription = activeSub(model.PlanBasic, time.Now().Add(24*time.Hour), true)
	users.Seed(paid, newTestUser("free"))
	uc := usecase.NewAccessUseCase(users, newTestLogger())

	if _, err := uc.Require(ctx, ""); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Errorf("anonymous: %v", err)
	}
	if _, err := uc.Require(ctx, "ghost"); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Errorf("unknown: %v", err)
	}
	if _, err := uc.Require(ctx, "free"); !errors.Is(err, domain.ErrSubscriptionRequired) {
		t.Errorf("free: %v", err)
	}
	if u, err := uc.Require(ctx, "paid"); err != nil || u.ID != "paid" {
		t.Errorf("paid: %v", err)
	}
}
