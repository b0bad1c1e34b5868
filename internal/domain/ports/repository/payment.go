package repository

import (
	"context"
	"time"

	"homeaura-subscription/internal/domain/model"
)

// -----------------------------
// Payment intents
// -----------------------------

// PaymentIntentRepository is the intent ledger. transaction_id is unique across
// all users and doubles as the owner lookup index for callbacks.
type PaymentIntentRepository interface {
	Create(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	// CreateIfAbsent inserts p unless its transaction id already exists.
	CreateIfAbsent(ctx context.Context, tx Tx, p *model.PaymentIntent) (bool, error)
	FindByTransactionID(ctx context.Context, tx Tx, txnID string) (*model.PaymentIntent, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.PaymentIntent, error)

	// TransitionIfPending moves a PENDING intent to a terminal status.
	TransitionIfPending(ctx context.Context, tx Tx, txnID string, to model.PaymentStatus, data model.PaymentData, reason string, paidAt *time.Time) (bool, error)
	RefreshPaymentData(ctx context.Context, tx Tx, txnID string, data model.PaymentData) error
	UpdateMetadata(ctx context.Context, tx Tx, txnID string, md model.IntentMetadata) error

	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)
}
