package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")

	// Boundary errors; each maps to a stable machine-readable code at the HTTP edge.
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrValidation             = errors.New("validation error")
	ErrPaymentInitiation      = errors.New("payment initiation failed")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrIntentNotFound         = errors.New("payment intent not found")
	ErrUnknownPlan            = errors.New("unknown plan")
	ErrSubscriptionRequired   = errors.New("active subscription required")
	ErrForbidden              = errors.New("forbidden")
	ErrRateLimited            = errors.New("rate limited")
	ErrInvalidCredentials     = errors.New("invalid credentials")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrLockBusy           = errors.New("lock is held by another worker")
)
