//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/adapter"
	"homeaura-subscription/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func cloneUser(u *model.User) *model.User {
	cp := *u
	if u.Subscription != nil {
		s := *u.Subscription
		cp.Subscription = &s
	}
	return &cp
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway (adapter) ----

type MockPaymentGateway struct {
	mu        sync.Mutex
	NameVal   string
	Initiated []adapter.InitiateRequest
	Charged   []adapter.ChargeRequest

	InitiateFunc      func(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error)
	CheckStatusFunc   func(ctx context.Context, txnID string) (model.PaymentOutcome, error)
	ChargeFunc        func(ctx context.Context, req adapter.ChargeRequest) (model.PaymentOutcome, error)
	ParseCallbackFunc func(raw []byte, signature string) (model.PaymentOutcome, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockPaymentGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	m.mu.Lock()
	m.Initiated = append(m.Initiated, req)
	m.mu.Unlock()
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, req)
	}
	return adapter.InitiateResult{RedirectURL: "https://pay.example/" + req.TransactionID, ResponseCode: "PAYMENT_INITIATED"}, nil
}

func (m *MockPaymentGateway) CheckStatus(ctx context.Context, txnID string) (model.PaymentOutcome, error) {
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx, txnID)
	}
	return model.PaymentOutcome{TransactionID: txnID, Code: model.OutcomeSuccess}, nil
}

func (m *MockPaymentGateway) Charge(ctx context.Context, req adapter.ChargeRequest) (model.PaymentOutcome, error) {
	m.mu.Lock()
	m.Charged = append(m.Charged, req)
	m.mu.Unlock()
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, req)
	}
	return model.PaymentOutcome{TransactionID: req.TransactionID, Code: model.OutcomeSuccess}, nil
}

func (m *MockPaymentGateway) ParseCallback(raw []byte, signature string) (model.PaymentOutcome, error) {
	if m.ParseCallbackFunc != nil {
		return m.ParseCallbackFunc(raw, signature)
	}
	return model.PaymentOutcome{}, errors.New("ParseCallbackFunc not set")
}

func (m *MockPaymentGateway) ChargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Charged)
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu        sync.Mutex
	Activated []string
	Renewed   []string
	Expired   []string
	Notices   map[string]int

	RenewalNoticeErr error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func NewMockNotifier() *MockNotifier { return &MockNotifier{Notices: map[string]int{}} }

func (n *MockNotifier) SubscriptionActivated(ctx context.Context, u *model.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Activated = append(n.Activated, u.ID)
	return nil
}

func (n *MockNotifier) SubscriptionRenewed(ctx context.Context, u *model.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Renewed = append(n.Renewed, u.ID)
	return nil
}

func (n *MockNotifier) SubscriptionExpired(ctx context.Context, u *model.User, sub model.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Expired = append(n.Expired, u.ID)
	return nil
}

func (n *MockNotifier) RenewalNotice(ctx context.Context, u *model.User, days int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.RenewalNoticeErr != nil {
		return n.RenewalNoticeErr
	}
	n.Notices[u.ID]++
	return nil
}

// ---- Mock OpsAlerter ----

type MockAlerter struct {
	mu   sync.Mutex
	Sent []string
}

func (a *MockAlerter) Alert(ctx context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Sent = append(a.Sent, text)
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

// MockUserRepo keeps the conditional-update semantics of the Postgres
// repository so races between callers can be exercised in memory.
type MockUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	history []model.SubscriptionChange

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}}
}

func (r *MockUserRepo) Seed(users ...*model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		r.byID[u.ID] = cloneUser(u)
	}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.byID {
		if id != u.ID && other.Email == u.Email {
			return domain.ErrAlreadyExists
		}
	}
	cp := cloneUser(u)
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) SetSubscription(ctx context.Context, tx repository.Tx, userID string, s *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *s
	u.Subscription = &cp
	return nil
}

func (r *MockUserRepo) ExpireIfDue(ctx context.Context, tx repository.Tx, userID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok || !u.Subscription.DueForExpiry(now) {
		return false, nil
	}
	u.Subscription.Expire(now)
	r.record(u, "", now)
	return true, nil
}

func (r *MockUserRepo) record(u *model.User, reason string, now time.Time) {
	s := u.Subscription
	r.history = append(r.history, model.SubscriptionChange{
		UserID: u.ID, SubscriptionID: s.ID, PlanID: s.PlanID, Status: s.Status,
		StartDate: s.StartDate, EndDate: s.EndDate, TransactionID: s.TransactionID,
		Reason: reason, ChangedAt: now,
	})
}

func (r *MockUserRepo) ListHistory(ctx context.Context, tx repository.Tx, userID string, limit int) ([]model.SubscriptionChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SubscriptionChange
	for i := len(r.history) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if r.history[i].UserID == userID {
			out = append(out, r.history[i])
		}
	}
	return out, nil
}

func (r *MockUserRepo) RenewIfDue(ctx context.Context, tx repository.Tx, userID string, expectedEnd time.Time, s *model.Subscription) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok || u.Subscription == nil || u.Subscription.Status != model.SubscriptionStatusActive ||
		u.Subscription.EndDate == nil || !u.Subscription.EndDate.Equal(expectedEnd) {
		return false, nil
	}
	cp := *s
	u.Subscription = &cp
	return true, nil
}

func (r *MockUserRepo) CancelIfActive(ctx context.Context, tx repository.Tx, userID, reason string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok || u.Subscription == nil {
		return false, nil
	}
	switch u.Subscription.Status {
	case model.SubscriptionStatusActive, model.SubscriptionStatusPending:
		u.Subscription.Cancel(reason, now)
		r.record(u, reason, now)
		return true, nil
	}
	return false, nil
}

func (r *MockUserRepo) sortedWhere(afterID string, limit int, keep func(*model.User) bool) []*model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.byID {
		if u.ID > afterID && keep(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *MockUserRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, now time.Time, afterID string, limit int) ([]*model.User, error) {
	return r.sortedWhere(afterID, limit, func(u *model.User) bool {
		return u.Subscription.DueForExpiry(now)
	}), nil
}

func (r *MockUserRepo) ListRenewingBetween(ctx context.Context, tx repository.Tx, from, to time.Time, afterID string, limit int) ([]*model.User, error) {
	return r.sortedWhere(afterID, limit, func(u *model.User) bool {
		s := u.Subscription
		return s != nil && s.Status == model.SubscriptionStatusActive && s.AutoRenew &&
			s.EndDate != nil && s.EndDate.After(from) && !s.EndDate.After(to)
	}), nil
}

func (r *MockUserRepo) Get(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		return cloneUser(u)
	}
	return nil
}

// ---- Mock PaymentIntentRepository ----

type MockIntentRepo struct {
	mu    sync.Mutex
	byTxn map[string]*model.PaymentIntent

	CreateFunc func(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error
}

var _ repository.PaymentIntentRepository = (*MockIntentRepo)(nil)

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{byTxn: map[string]*model.PaymentIntent{}}
}

func (r *MockIntentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	ok, err := r.CreateIfAbsent(ctx, tx, p)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *MockIntentRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byTxn[p.TransactionID]; ok {
		return false, nil
	}
	cp := *p
	r.byTxn[p.TransactionID] = &cp
	return true, nil
}

func (r *MockIntentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, txnID string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byTxn[txnID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockIntentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range r.byTxn {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockIntentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, txnID string, to model.PaymentStatus, data model.PaymentData, reason string, paidAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byTxn[txnID]
	if !ok || !model.CanTransition(p.Status, to) {
		return false, nil
	}
	p.Status = to
	p.PaymentData = data
	p.Error = reason
	p.PaidAt = paidAt
	return true, nil
}

func (r *MockIntentRepo) RefreshPaymentData(ctx context.Context, tx repository.Tx, txnID string, data model.PaymentData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byTxn[txnID]
	if !ok {
		return domain.ErrNotFound
	}
	p.PaymentData = data
	return nil
}

func (r *MockIntentRepo) UpdateMetadata(ctx context.Context, tx repository.Tx, txnID string, md model.IntentMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byTxn[txnID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Metadata = md
	return nil
}

func (r *MockIntentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range r.byTxn {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockIntentRepo) Seed(p *model.PaymentIntent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byTxn[p.TransactionID] = &cp
}

func (r *MockIntentRepo) Get(txnID string) *model.PaymentIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byTxn[txnID]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (r *MockIntentRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byTxn)
}

// ---- Mock NotificationLogRepository ----

type MockNotificationLogRepo struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ repository.NotificationLogRepository = (*MockNotificationLogRepo)(nil)

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{seen: map[string]struct{}{}}
}

func (r *MockNotificationLogRepo) Claim(ctx context.Context, tx repository.Tx, userID, kind, bucket string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := userID + "|" + kind + "|" + bucket
	if _, ok := r.seen[k]; ok {
		return false, nil
	}
	r.seen[k] = struct{}{}
	return true, nil
}

func (r *MockNotificationLogRepo) Release(ctx context.Context, tx repository.Tx, userID, kind, bucket string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, userID+"|"+kind+"|"+bucket)
	return nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockBusy
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// newTestUser builds a registered user without running bcrypt.
func newTestUser(id string) *model.User {
	return &model.User{
		ID:    id,
		Name:  "User " + id,
		Email: id + "@example.com",
		Role:  model.RoleUser,
		Phone: model.Phone{Primary: "9876543210"},
	}
}
