package adapter

import (
	"context"

	"homeaura-subscription/internal/domain/model"
)

// InitiateRequest is everything the provider needs to open a hosted pay page.
type InitiateRequest struct {
	TransactionID string
	UserID        string
	PlanID        string
	Amount        int64 // whole rupees; gateways scale to minor units
	MobileNumber  string
	PropertyID    string
	ReturnURL     string
}

type InitiateResult struct {
	RedirectURL  string
	ResponseCode string
}

// ChargeRequest is a merchant-initiated debit used for auto-renewal.
type ChargeRequest struct {
	TransactionID string
	UserID        string
	PlanID        string
	Amount        int64
	MobileNumber  string
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// Initiate must return domain.ErrPaymentInitiation unless the provider
	// confirmed the payment as initiated.
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	// CheckStatus asks the provider for the verdict of a transaction.
	CheckStatus(ctx context.Context, txnID string) (model.PaymentOutcome, error)
	// Charge debits a stored mandate for a renewal.
	Charge(ctx context.Context, req ChargeRequest) (model.PaymentOutcome, error)
	// ParseCallback authenticates a provider push and decodes it.
	// A signature mismatch yields domain.ErrInvalidSignature.
	ParseCallback(raw []byte, signature string) (model.PaymentOutcome, error)
}
