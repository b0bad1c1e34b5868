//go:build !integration

package api

import (
	"context"
	"sync"
	"time"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/usecase"
)

// --- Use case fakes; unimplemented methods panic through the embedded nil interface ---

type fakePaymentUC struct {
	usecase.PaymentUseCase
	initiateOut *usecase.InitiateOutput
	initiateErr error
	lastInput   usecase.InitiateInput
	callbackRes *usecase.ApplyResult
	callbackErr error
	verifyRes   *usecase.ApplyResult
	verifyErr   error
	intents     []*model.PaymentIntent
}

func (f *fakePaymentUC) Initiate(_ context.Context, in usecase.InitiateInput) (*usecase.InitiateOutput, error) {
	f.lastInput = in
	return f.initiateOut, f.initiateErr
}

func (f *fakePaymentUC) HandleCallback(_ context.Context, _ []byte, sig string) (*usecase.ApplyResult, error) {
	if sig == "" {
		return nil, domain.ErrInvalidSignature
	}
	return f.callbackRes, f.callbackErr
}

func (f *fakePaymentUC) VerifyStatus(_ context.Context, _, _ string) (*usecase.ApplyResult, error) {
	return f.verifyRes, f.verifyErr
}

func (f *fakePaymentUC) ListIntents(_ context.Context, _ string, _ int) ([]*model.PaymentIntent, error) {
	return f.intents, nil
}

type fakeSubscriptionUC struct {
	usecase.SubscriptionUseCase
	user      *model.User
	grantErr  error
	history   []model.SubscriptionChange
	lastLimit int
}

func (f *fakeSubscriptionUC) History(_ context.Context, userID string, limit int) ([]model.SubscriptionChange, error) {
	f.lastLimit = limit
	var out []model.SubscriptionChange
	for _, c := range f.history {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionUC) Get(_ context.Context, userID string) (*model.User, error) {
	if f.user == nil || f.user.ID != userID {
		return nil, domain.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeSubscriptionUC) Cancel(_ context.Context, _, reason string) (*model.Subscription, error) {
	if !f.user.Subscription.IsActive(time.Now()) {
		return nil, domain.ErrNoActiveSubscription
	}
	f.user.Subscription.Cancel(reason, time.Now())
	return f.user.Subscription, nil
}

func (f *fakeSubscriptionUC) Grant(_ context.Context, _, _, planID string) (*model.Subscription, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	plan, err := model.LookupPlan(planID)
	if err != nil {
		return nil, err
	}
	return model.NewActiveSubscription(plan, time.Now(), "GRANT-1"), nil
}

type fakeUserUC struct {
	usecase.UserUseCase
	owner *model.User
}

func (f *fakeUserUC) Register(_ context.Context, in usecase.RegisterInput) (*model.User, error) {
	return model.NewUser(in.Name, in.Email, in.Password, in.Phone, in.Role)
}

func (f *fakeUserUC) RevealContact(_ context.Context, _, ownerID string) (model.Contact, error) {
	if f.owner == nil || f.owner.ID != ownerID {
		return model.Contact{}, domain.ErrNotFound
	}
	return model.ContactOf(f.owner), nil
}

func (f *fakeUserUC) PreviewContact(_ context.Context, ownerID string) (model.Contact, error) {
	if f.owner == nil || f.owner.ID != ownerID {
		return model.Contact{}, domain.ErrNotFound
	}
	return model.ContactOf(f.owner).Mask(), nil
}

// fakeAccess grants access to the ids in allowed.
type fakeAccess struct {
	allowed map[string]bool
}

func (f *fakeAccess) Require(_ context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	if !f.allowed[userID] {
		return nil, domain.ErrSubscriptionRequired
	}
	return &model.User{ID: userID}, nil
}

// fakeLimiter allows the first limit calls per key.
type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (f *fakeLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}
