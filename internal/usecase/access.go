package usecase

import (
	"context"
	"errors"
	"time"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// HasAccess is true iff the user holds an active subscription that has not ended.
func HasAccess(u *model.User, now time.Time) bool {
	return u != nil && u.Subscription.IsActive(now)
}

// AccessUseCase is the gate in front of contact disclosure and other paid operations.
type AccessUseCase interface {
	// Require loads the user and fails with domain.ErrSubscriptionRequired when access is denied.
	Require(ctx context.Context, userID string) (*model.User, error)
}

type accessUC struct {
	users repository.UserRepository
	now   func() time.Time
	log   *zerolog.Logger
}

type AccessOption func(*accessUC)

func WithAccessClock(now func() time.Time) AccessOption {
	return func(a *accessUC) { a.now = now }
}

func NewAccessUseCase(users repository.UserRepository, logger *zerolog.Logger, opts ...AccessOption) *accessUC {
	a := &accessUC{users: users, now: time.Now, log: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *accessUC) Require(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	usr, err := a.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAuthenticationRequired
		}
		return nil, err
	}
	if !HasAccess(usr, a.now()) {
		a.log.Debug().Str("user_id", userID).Msg("access denied: no active subscription")
		return usr, domain.ErrSubscriptionRequired
	}
	return usr, nil
}
