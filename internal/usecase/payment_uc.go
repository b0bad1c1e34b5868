// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/adapter"
	"homeaura-subscription/internal/domain/ports/repository"
	portsuc "homeaura-subscription/internal/domain/ports/usecase"
	"homeaura-subscription/internal/infra/logging"
)

// Compile-time checks
var (
	_ PaymentUseCase            = (*paymentUC)(nil)
	_ portsuc.PaymentReconciler = (*paymentUC)(nil)
)

type PaymentUseCase interface {
	// Initiate opens a provider pay page and records a PENDING intent once the
	// provider confirmed it.
	Initiate(ctx context.Context, in InitiateInput) (*InitiateOutput, error)
	// HandleCallback authenticates a provider push and applies its verdict.
	HandleCallback(ctx context.Context, raw []byte, signature string) (*ApplyResult, error)
	// VerifyStatus pulls the verdict from the provider. userID, when set, must own the intent.
	VerifyStatus(ctx context.Context, userID, txnID string) (*ApplyResult, error)
	Reconcile(ctx context.Context, txnID string) (*model.PaymentIntent, bool, error)
	ListIntents(ctx context.Context, userID string, limit int) ([]*model.PaymentIntent, error)
}

type InitiateInput struct {
	UserID     string
	PlanID     string
	Amount     int64
	ReturnURL  string
	PropertyID string
}

type InitiateOutput struct {
	RedirectURL   string
	TransactionID string
}

type PaymentOption func(*paymentUC)

func WithAlerter(a adapter.OpsAlerter) PaymentOption {
	return func(u *paymentUC) { u.alerter = a }
}

func WithPaymentClock(now func() time.Time) PaymentOption {
	return func(u *paymentUC) { u.now = now }
}

type paymentUC struct {
	users   repository.UserRepository
	intents repository.PaymentIntentRepository
	subs    SubscriptionUseCase
	gateway adapter.PaymentGateway
	alerter adapter.OpsAlerter
	entropy io.Reader
	now     func() time.Time
	log     *zerolog.Logger
}

func NewPaymentUseCase(
	users repository.UserRepository,
	intents repository.PaymentIntentRepository,
	subs SubscriptionUseCase,
	gateway adapter.PaymentGateway,
	logger *zerolog.Logger,
	opts ...PaymentOption,
) *paymentUC {
	compLog := logger.With().Str("component", "PaymentUC").Logger()
	u := &paymentUC{
		users:   users,
		intents: intents,
		subs:    subs,
		gateway: gateway,
		entropy: rand.Reader,
		now:     time.Now,
		log:     &compLog,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *paymentUC) Initiate(ctx context.Context, in InitiateInput) (*InitiateOutput, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()

	if in.UserID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	if in.PlanID == "" || in.Amount <= 0 {
		return nil, fmt.Errorf("%w: planId and a positive amount are required", domain.ErrValidation)
	}
	plan, err := model.LookupPlan(in.PlanID)
	if err != nil {
		return nil, err
	}
	if in.Amount != plan.Price {
		return nil, fmt.Errorf("%w: amount %d does not match %s price %d", domain.ErrValidation, in.Amount, plan.ID, plan.Price)
	}
	usr, err := u.users.FindByID(ctx, repository.NoTX, in.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAuthenticationRequired
		}
		return nil, err
	}

	now := u.now()
	txnID, err := u.newTransactionID(now)
	if err != nil {
		return nil, err
	}
	l := u.log.With().Str("transaction_id", txnID).Str("user_id", usr.ID).Str("plan_id", plan.ID).Logger()

	res, err := u.gateway.Initiate(ctx, adapter.InitiateRequest{
		TransactionID: txnID,
		UserID:        usr.ID,
		PlanID:        plan.ID,
		Amount:        plan.Price,
		MobileNumber:  usr.Phone.Primary,
		PropertyID:    in.PropertyID,
		ReturnURL:     in.ReturnURL,
	})
	if err != nil {
		l.Warn().Err(err).Msg("gateway did not initiate payment")
		if !errors.Is(err, domain.ErrPaymentInitiation) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentInitiation, err)
		}
		return nil, err
	}

	intent := &model.PaymentIntent{
		TransactionID: txnID,
		UserID:        usr.ID,
		PlanID:        plan.ID,
		Kind:          model.PaymentKindPurchase,
		Provider:      u.gateway.Name(),
		Amount:        plan.Price,
		Currency:      plan.Currency,
		Status:        model.PaymentStatusPending,
		Metadata: model.IntentMetadata{
			PropertyID: in.PropertyID,
			PlanName:   plan.Name,
			Amount:     plan.Price,
			ReturnURL:  in.ReturnURL,
		},
		PaymentData: model.PaymentData{ResponseCode: res.ResponseCode},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.intents.Create(ctx, repository.NoTX, intent); err != nil {
		l.Error().Err(err).Msg("persist intent failed after provider initiation")
		return nil, err
	}

	l.Info().Msg("payment initiated")
	return &InitiateOutput{RedirectURL: res.RedirectURL, TransactionID: txnID}, nil
}

// newTransactionID is "TXN" + a ULID: a millisecond time prefix and 80 random bits.
func (u *paymentUC) newTransactionID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), u.entropy)
	if err != nil {
		return "", fmt.Errorf("generate transaction id: %w", err)
	}
	return "TXN" + id.String(), nil
}

func sortableID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

func (u *paymentUC) HandleCallback(ctx context.Context, raw []byte, signature string) (*ApplyResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleCallback")()

	outcome, err := u.gateway.ParseCallback(raw, signature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			u.log.Warn().Int("body_bytes", len(raw)).Msg("callback signature mismatch; possible forgery")
			if u.alerter != nil {
				if aerr := u.alerter.Alert(ctx, fmt.Sprintf("Rejected payment callback with invalid signature (%d bytes)", len(raw))); aerr != nil {
					u.log.Warn().Err(aerr).Msg("ops alert failed")
				}
			}
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if outcome.TransactionID == "" {
		return nil, fmt.Errorf("%w: transactionId is required", domain.ErrValidation)
	}
	return u.subs.ApplyPaymentOutcome(ctx, "", outcome)
}

func (u *paymentUC) VerifyStatus(ctx context.Context, userID, txnID string) (*ApplyResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.VerifyStatus")()

	if txnID == "" {
		return nil, fmt.Errorf("%w: transactionId is required", domain.ErrValidation)
	}
	intent, err := u.intents.FindByTransactionID(ctx, repository.NoTX, txnID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, err
	}
	if userID != "" && intent.UserID != userID {
		return nil, domain.ErrIntentNotFound
	}

	if intent.Status.IsTerminal() {
		owner, err := u.users.FindByID(ctx, repository.NoTX, intent.UserID)
		if err != nil {
			return nil, err
		}
		return &ApplyResult{Intent: intent, Subscription: owner.Subscription}, nil
	}

	outcome, err := u.gateway.CheckStatus(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("check status %s: %w", txnID, err)
	}
	outcome.TransactionID = txnID
	return u.subs.ApplyPaymentOutcome(ctx, intent.UserID, outcome)
}

func (u *paymentUC) Reconcile(ctx context.Context, txnID string) (*model.PaymentIntent, bool, error) {
	res, err := u.VerifyStatus(ctx, "", txnID)
	if err != nil {
		return nil, false, err
	}
	return res.Intent, res.Applied, nil
}

func (u *paymentUC) ListIntents(ctx context.Context, userID string, limit int) ([]*model.PaymentIntent, error) {
	if userID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	return u.intents.ListByUser(ctx, repository.NoTX, userID, limit)
}
