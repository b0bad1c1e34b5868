// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
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
	_ SubscriptionUseCase         = (*subscriptionUC)(nil)
	_ portsuc.SubscriptionSweeper = (*subscriptionUC)(nil)
)

// SubscriptionUseCase is the single authority that mutates a user's subscription.
type SubscriptionUseCase interface {
	// ApplyPaymentOutcome settles an intent. userID may be empty when the owner
	// is resolved through the transaction id (provider callbacks).
	ApplyPaymentOutcome(ctx context.Context, userID string, outcome model.PaymentOutcome) (*ApplyResult, error)
	SweepExpirations(ctx context.Context, now time.Time) (portsuc.SweepResult, error)
	Cancel(ctx context.Context, userID, reason string) (*model.Subscription, error)
	// Grant activates a plan without payment. Admin only.
	Grant(ctx context.Context, actorID, userID, planID string) (*model.Subscription, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	// History lists expired and cancelled subscriptions, newest first.
	History(ctx context.Context, userID string, limit int) ([]model.SubscriptionChange, error)
}

// ApplyResult is the state after an outcome was applied.
// Applied is false when the intent was already terminal or the outcome was still pending.
type ApplyResult struct {
	Intent       *model.PaymentIntent
	Subscription *model.Subscription
	Applied      bool
}

type SubscriptionConfig struct {
	SweepBatchSize int
	SweepLockTTL   time.Duration
}

const (
	sweepLockKey        = "lock:subscription-sweep"
	defaultSweepBatch   = 200
	defaultSweepLockTTL = 30 * time.Minute
	verifyFailedReason  = "Payment verification failed"
)

type SubscriptionOption func(*subscriptionUC)

// WithLocker guards the sweep against overlapping runs on other replicas.
func WithLocker(l adapter.Locker) SubscriptionOption {
	return func(u *subscriptionUC) { u.locker = l }
}

func WithClock(now func() time.Time) SubscriptionOption {
	return func(u *subscriptionUC) { u.now = now }
}

type subscriptionUC struct {
	users    repository.UserRepository
	intents  repository.PaymentIntentRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	notifier adapter.Notifier
	locker   adapter.Locker
	cfg      SubscriptionConfig
	now      func() time.Time
	log      *zerolog.Logger
}

func NewSubscriptionUseCase(
	users repository.UserRepository,
	intents repository.PaymentIntentRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	notifier adapter.Notifier,
	cfg SubscriptionConfig,
	logger *zerolog.Logger,
	opts ...SubscriptionOption,
) *subscriptionUC {
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaultSweepBatch
	}
	if cfg.SweepLockTTL <= 0 {
		cfg.SweepLockTTL = defaultSweepLockTTL
	}
	compLog := logger.With().Str("component", "SubscriptionUC").Logger()
	u := &subscriptionUC{
		users:    users,
		intents:  intents,
		tm:       tm,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		log:      &compLog,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *subscriptionUC) ApplyPaymentOutcome(ctx context.Context, userID string, outcome model.PaymentOutcome) (*ApplyResult, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.ApplyPaymentOutcome")()

	if outcome.TransactionID == "" {
		return nil, fmt.Errorf("%w: transactionId is required", domain.ErrValidation)
	}

	var (
		res       ApplyResult
		activated *model.User
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		intent, err := u.intents.FindByTransactionID(ctx, tx, outcome.TransactionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrIntentNotFound
			}
			return err
		}
		if userID != "" && intent.UserID != userID {
			return domain.ErrIntentNotFound
		}
		owner, err := u.users.FindByID(ctx, tx, intent.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrIntentNotFound
			}
			return err
		}
		res.Intent = intent
		res.Subscription = owner.Subscription

		// Terminal intents and still-pending verdicts only refresh provider data.
		if intent.Status.IsTerminal() || outcome.Pending() {
			if outcome.Data != (model.PaymentData{}) {
				if err := u.intents.RefreshPaymentData(ctx, tx, intent.TransactionID, outcome.Data); err != nil {
					return err
				}
				intent.PaymentData = outcome.Data
			}
			return nil
		}

		target := outcome.TargetStatus()
		var plan model.Plan
		if target == model.PaymentStatusSucceeded {
			// Resolve the plan before the first write so an unknown plan leaves everything untouched.
			if plan, err = model.LookupPlan(intent.PlanID); err != nil {
				return err
			}
		}

		now := u.now()
		var (
			paidAt *time.Time
			reason string
		)
		if target == model.PaymentStatusSucceeded {
			paidAt = &now
		} else {
			reason = outcome.Message
			if reason == "" {
				reason = verifyFailedReason
			}
		}

		won, err := u.intents.TransitionIfPending(ctx, tx, intent.TransactionID, target, outcome.Data, reason, paidAt)
		if err != nil {
			return err
		}
		if !won {
			// A concurrent delivery settled it first.
			return nil
		}
		res.Applied = true
		intent.Status = target
		intent.PaymentData = outcome.Data
		intent.Error = reason
		intent.PaidAt = paidAt
		intent.UpdatedAt = now

		if target != model.PaymentStatusSucceeded {
			return nil
		}

		sub := model.NewActiveSubscription(plan, now, intent.TransactionID)
		if err := u.users.SetSubscription(ctx, tx, owner.ID, sub); err != nil {
			return err
		}
		md := intent.Metadata
		md.SubscriptionID = sub.ID
		md.PlanName = plan.Name
		md.Amount = intent.Amount
		if err := u.intents.UpdateMetadata(ctx, tx, intent.TransactionID, md); err != nil {
			return err
		}
		intent.Metadata = md
		owner.Subscription = sub
		res.Subscription = sub
		activated = owner
		return nil
	})
	if err != nil {
		return nil, err
	}

	l := u.log.With().Str("transaction_id", outcome.TransactionID).Str("status", string(res.Intent.Status)).Bool("applied", res.Applied).Logger()
	l.Info().Msg("payment outcome processed")

	if activated != nil && u.notifier != nil {
		if err := u.notifier.SubscriptionActivated(ctx, activated); err != nil {
			l.Warn().Err(err).Msg("activation notice failed")
		}
	}
	return &res, nil
}

type sweepAction int

const (
	sweepSkipped sweepAction = iota
	sweepExpired
	sweepRenewed
)

// SweepExpirations expires or renews every active subscription whose end date
// has passed. Per-user failures are counted and the batch continues.
func (u *subscriptionUC) SweepExpirations(ctx context.Context, now time.Time) (portsuc.SweepResult, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.SweepExpirations")()

	var res portsuc.SweepResult
	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, sweepLockKey, u.cfg.SweepLockTTL)
		switch {
		case errors.Is(err, domain.ErrLockBusy):
			return res, err
		case err != nil:
			// Conditional updates keep overlapping runs safe, so carry on unlocked.
			u.log.Warn().Err(err).Msg("sweep lock unavailable; continuing without it")
		default:
			defer func() {
				if err := u.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
					u.log.Warn().Err(err).Msg("sweep unlock failed")
				}
			}()
		}
	}

	afterID := ""
	for {
		batch, err := u.users.ListDueForExpiry(ctx, repository.NoTX, now, afterID, u.cfg.SweepBatchSize)
		if err != nil {
			return res, err
		}
		for _, usr := range batch {
			res.Scanned++
			action, err := u.processDue(ctx, usr, now)
			if err != nil {
				res.Failed++
				u.log.Error().Err(err).Str("user_id", usr.ID).Msg("sweep: user failed")
				continue
			}
			switch action {
			case sweepExpired:
				res.Expired++
			case sweepRenewed:
				res.Renewed++
			default:
				res.Skipped++
			}
		}
		if len(batch) < u.cfg.SweepBatchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	u.log.Info().
		Int("scanned", res.Scanned).
		Int("expired", res.Expired).
		Int("renewed", res.Renewed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("expiry sweep finished")
	return res, nil
}

func (u *subscriptionUC) processDue(ctx context.Context, usr *model.User, now time.Time) (sweepAction, error) {
	sub := usr.Subscription
	if !sub.DueForExpiry(now) {
		return sweepSkipped, nil
	}
	if !sub.AutoRenew {
		return u.expire(ctx, usr, now)
	}
	return u.renew(ctx, usr, now)
}

func (u *subscriptionUC) expire(ctx context.Context, usr *model.User, now time.Time) (sweepAction, error) {
	won, err := u.users.ExpireIfDue(ctx, repository.NoTX, usr.ID, now)
	if err != nil {
		return sweepSkipped, err
	}
	if !won {
		return sweepSkipped, nil
	}
	expired := *usr.Subscription
	expired.Expire(now)
	if u.notifier != nil {
		if err := u.notifier.SubscriptionExpired(ctx, usr, expired); err != nil {
			u.log.Warn().Err(err).Str("user_id", usr.ID).Msg("expiry notice failed")
		}
	}
	return sweepExpired, nil
}

// renew charges the plan price again and extends the subscription only when
// the provider approves. A decline or charge error expires the subscription.
func (u *subscriptionUC) renew(ctx context.Context, usr *model.User, now time.Time) (sweepAction, error) {
	sub := usr.Subscription
	l := u.log.With().Str("user_id", usr.ID).Str("plan_id", sub.PlanID).Logger()

	plan, err := model.LookupPlan(sub.PlanID)
	if err != nil {
		l.Warn().Err(err).Msg("cannot renew unknown plan; expiring")
		return u.expire(ctx, usr, now)
	}

	oldEnd := *sub.EndDate
	txnID := RenewalTransactionID(usr.ID, oldEnd)
	intent := &model.PaymentIntent{
		TransactionID: txnID,
		UserID:        usr.ID,
		PlanID:        plan.ID,
		Kind:          model.PaymentKindRenewal,
		Provider:      u.gateway.Name(),
		Amount:        plan.Price,
		Currency:      plan.Currency,
		Status:        model.PaymentStatusPending,
		Metadata: model.IntentMetadata{
			SubscriptionID: sub.ID,
			PlanName:       plan.Name,
			Amount:         plan.Price,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := u.intents.CreateIfAbsent(ctx, repository.NoTX, intent)
	if err != nil {
		return sweepSkipped, err
	}
	if !created {
		existing, err := u.intents.FindByTransactionID(ctx, repository.NoTX, txnID)
		if err != nil {
			return sweepSkipped, err
		}
		switch existing.Status {
		case model.PaymentStatusFailed, model.PaymentStatusCancelled:
			return u.expire(ctx, usr, now)
		case model.PaymentStatusSucceeded:
			// Charged earlier but the extension was never written.
			return u.finishRenewal(ctx, usr, plan, oldEnd, txnID, existing.PaymentData, false, now)
		default:
			l.Info().Str("transaction_id", txnID).Msg("renewal charge already in flight")
			return sweepSkipped, nil
		}
	}

	outcome, err := u.gateway.Charge(ctx, adapter.ChargeRequest{
		TransactionID: txnID,
		UserID:        usr.ID,
		PlanID:        plan.ID,
		Amount:        plan.Price,
		MobileNumber:  usr.Phone.Primary,
	})
	if err != nil {
		outcome = model.PaymentOutcome{TransactionID: txnID, Code: model.OutcomeError, Message: err.Error()}
	}

	switch {
	case outcome.Succeeded():
		return u.finishRenewal(ctx, usr, plan, oldEnd, txnID, outcome.Data, true, now)
	case outcome.Pending():
		l.Info().Str("transaction_id", txnID).Msg("renewal charge pending at provider")
		return sweepSkipped, nil
	}

	reason := outcome.Message
	if reason == "" {
		reason = "renewal charge declined"
	}
	if _, err := u.intents.TransitionIfPending(ctx, repository.NoTX, txnID, model.PaymentStatusFailed, outcome.Data, reason, nil); err != nil {
		return sweepSkipped, err
	}
	l.Warn().Str("transaction_id", txnID).Str("reason", reason).Msg("renewal declined; expiring")
	return u.expire(ctx, usr, now)
}

func (u *subscriptionUC) finishRenewal(ctx context.Context, usr *model.User, plan model.Plan, oldEnd time.Time, txnID string, data model.PaymentData, settleIntent bool, now time.Time) (sweepAction, error) {
	renewed := *usr.Subscription
	renewed.Renew(plan, now, txnID)
	renewed.AutoRenew = true

	var extended bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if settleIntent {
			paidAt := now
			won, err := u.intents.TransitionIfPending(ctx, tx, txnID, model.PaymentStatusSucceeded, data, "", &paidAt)
			if err != nil {
				return err
			}
			if !won {
				return nil
			}
		}
		ok, err := u.users.RenewIfDue(ctx, tx, usr.ID, oldEnd, &renewed)
		if err != nil {
			return err
		}
		extended = ok
		return nil
	})
	if err != nil {
		return sweepSkipped, err
	}
	if !extended {
		u.log.Warn().Str("user_id", usr.ID).Str("transaction_id", txnID).Msg("renewal charged but subscription changed meanwhile")
		return sweepSkipped, nil
	}
	usr.Subscription = &renewed
	if u.notifier != nil {
		if err := u.notifier.SubscriptionRenewed(ctx, usr); err != nil {
			u.log.Warn().Err(err).Str("user_id", usr.ID).Msg("renewal notice failed")
		}
	}
	return sweepRenewed, nil
}

// RenewalTransactionID is stable per (user, billing cycle) so a re-run of the
// sweep never charges the same cycle twice.
func RenewalTransactionID(userID string, cycleEnd time.Time) string {
	sum := sha256.Sum256([]byte(userID + "|" + cycleEnd.UTC().Format(time.RFC3339Nano)))
	return "RNW" + hex.EncodeToString(sum[:])[:24]
}

func (u *subscriptionUC) Cancel(ctx context.Context, userID, reason string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Cancel")()

	if userID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	won, err := u.users.CancelIfActive(ctx, repository.NoTX, userID, reason, u.now())
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, domain.ErrNoActiveSubscription
	}
	usr, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", userID).Msg("subscription cancelled")
	return usr.Subscription, nil
}

func (u *subscriptionUC) Grant(ctx context.Context, actorID, userID, planID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Grant")()

	actor, err := u.users.FindByID(ctx, repository.NoTX, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAuthenticationRequired
		}
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if planID == "" {
		return nil, fmt.Errorf("%w: planId is required", domain.ErrValidation)
	}
	plan, err := model.LookupPlan(planID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = actorID
	}
	if _, err := u.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}

	now := u.now()
	sub := model.NewActiveSubscription(plan, now, "GRANT-"+sortableID(now))
	if err := u.users.SetSubscription(ctx, repository.NoTX, userID, sub); err != nil {
		return nil, err
	}
	u.log.Info().Str("actor_id", actorID).Str("user_id", userID).Str("plan_id", planID).Msg("subscription granted without payment")
	return sub, nil
}

func (u *subscriptionUC) Get(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	return u.users.FindByID(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) History(ctx context.Context, userID string, limit int) ([]model.SubscriptionChange, error) {
	if userID == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	return u.users.ListHistory(ctx, repository.NoTX, userID, limit)
}
