package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

// userRepo stores the subscription inline in sub_* columns; a user has at most one.
type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, phone_primary, phone_secondary, created_at, updated_at,
  sub_id, sub_plan_id, sub_plan_name, sub_price, sub_status, sub_start_date, sub_end_date,
  sub_transaction_id, sub_auto_renew, sub_cancellation_reason, sub_last_billing_date,
  sub_next_billing_date, sub_updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u      model.User
		role   string
		subID  *string
		planID *string
		name   *string
		price  *int64
		status *string
		start  *time.Time
		end    *time.Time
		txnID  *string
		auto   bool
		reason *string
		lastB  *time.Time
		nextB  *time.Time
		subUpd *time.Time
		phone2 *string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Phone.Primary, &phone2, &u.CreatedAt, &u.UpdatedAt,
		&subID, &planID, &name, &price, &status, &start, &end,
		&txnID, &auto, &reason, &lastB, &nextB, &subUpd); err != nil {
		return nil, mapScanErr(err)
	}
	u.Role = model.Role(role)
	u.Phone.Secondary = deref(phone2)
	if subID != nil {
		s := &model.Subscription{
			ID:                 *subID,
			PlanID:             deref(planID),
			PlanName:           deref(name),
			Status:             model.SubscriptionStatus(deref(status)),
			EndDate:            end,
			TransactionID:      deref(txnID),
			AutoRenew:          auto,
			CancellationReason: deref(reason),
			LastBillingDate:    lastB,
			NextBillingDate:    nextB,
		}
		if price != nil {
			s.Price = *price
		}
		if start != nil {
			s.StartDate = *start
		}
		if subUpd != nil {
			s.UpdatedAt = *subUpd
		}
		u.Subscription = s
	}
	return &u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, name, email, password_hash, role, phone_primary, phone_secondary, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  name=$2, email=$3, password_hash=$4, role=$5, phone_primary=$6, phone_secondary=$7, updated_at=$9;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
		u.Phone.Primary, nullable(u.Phone.Secondary), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	if u.Subscription != nil {
		return r.SetSubscription(ctx, tx, u.ID, u.Subscription)
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := forUpdate(`SELECT `+userColumns+` FROM users WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	q := forUpdate(`SELECT `+userColumns+` FROM users WHERE email=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, email)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) SetSubscription(ctx context.Context, tx repository.Tx, userID string, s *model.Subscription) error {
	const q = `
UPDATE users SET
  sub_id=$2, sub_plan_id=$3, sub_plan_name=$4, sub_price=$5, sub_status=$6, sub_start_date=$7, sub_end_date=$8,
  sub_transaction_id=$9, sub_auto_renew=$10, sub_cancellation_reason=$11, sub_last_billing_date=$12,
  sub_next_billing_date=$13, sub_updated_at=$14, updated_at=NOW()
WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID,
		s.ID, s.PlanID, s.PlanName, s.Price, string(s.Status), s.StartDate, s.EndDate,
		nullable(s.TransactionID), s.AutoRenew, nullable(s.CancellationReason), s.LastBillingDate,
		s.NextBillingDate, s.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return mapScanErr(pgx.ErrNoRows)
	}
	return nil
}

func (r *userRepo) ExpireIfDue(ctx context.Context, tx repository.Tx, userID string, now time.Time) (bool, error) {
	const q = `
WITH changed AS (
  UPDATE users
     SET sub_status='expired', sub_auto_renew=FALSE, sub_next_billing_date=NULL, sub_updated_at=$2, updated_at=NOW()
   WHERE id=$1 AND sub_status='active' AND sub_end_date IS NOT NULL AND sub_end_date <= $2
  RETURNING ` + historyReturning + `
)
` + historyInsert + `, NULL, $2 FROM changed;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, now)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *userRepo) RenewIfDue(ctx context.Context, tx repository.Tx, userID string, expectedEnd time.Time, s *model.Subscription) (bool, error) {
	const q = `
UPDATE users SET
  sub_plan_id=$3, sub_plan_name=$4, sub_price=$5, sub_status='active', sub_start_date=$6, sub_end_date=$7,
  sub_transaction_id=$8, sub_auto_renew=$9, sub_cancellation_reason=NULL, sub_last_billing_date=$10,
  sub_next_billing_date=$11, sub_updated_at=$12, updated_at=NOW()
WHERE id=$1 AND sub_status='active' AND sub_end_date=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, expectedEnd,
		s.PlanID, s.PlanName, s.Price, s.StartDate, s.EndDate,
		nullable(s.TransactionID), s.AutoRenew, s.LastBillingDate, s.NextBillingDate, s.UpdatedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *userRepo) CancelIfActive(ctx context.Context, tx repository.Tx, userID, reason string, now time.Time) (bool, error) {
	const q = `
WITH changed AS (
  UPDATE users
     SET sub_status='cancelled', sub_auto_renew=FALSE, sub_cancellation_reason=$2,
         sub_next_billing_date=NULL, sub_updated_at=$3, updated_at=NOW()
   WHERE id=$1 AND sub_status IN ('active','pending')
  RETURNING ` + historyReturning + `
)
` + historyInsert + `, $2, $3 FROM changed;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, nullable(reason), now)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

// The conditional UPDATE and its history row share one statement, so the
// INSERT's RowsAffected reports whether this caller won.
const (
	historyReturning = `id, sub_id, sub_plan_id, sub_status, sub_start_date, sub_end_date, sub_transaction_id`
	historyInsert    = `INSERT INTO subscription_history
  (user_id, subscription_id, plan_id, status, start_date, end_date, transaction_id, reason, changed_at)
SELECT id, sub_id, sub_plan_id, sub_status, sub_start_date, sub_end_date, sub_transaction_id`
)

func (r *userRepo) ListHistory(ctx context.Context, tx repository.Tx, userID string, limit int) ([]model.SubscriptionChange, error) {
	const q = `
SELECT user_id, subscription_id, plan_id, status, start_date, end_date, transaction_id, reason, changed_at
  FROM subscription_history
 WHERE user_id=$1
 ORDER BY changed_at DESC, id DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, normLimit(limit))
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []model.SubscriptionChange
	for rows.Next() {
		var (
			c                    model.SubscriptionChange
			subID, planID, txnID *string
			reason               *string
			status               string
			start                *time.Time
		)
		if err := rows.Scan(&c.UserID, &subID, &planID, &status, &start, &c.EndDate, &txnID, &reason, &c.ChangedAt); err != nil {
			return nil, mapScanErr(err)
		}
		c.SubscriptionID, c.PlanID, c.TransactionID, c.Reason = deref(subID), deref(planID), deref(txnID), deref(reason)
		c.Status = model.SubscriptionStatus(status)
		if start != nil {
			c.StartDate = *start
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *userRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, now time.Time, afterID string, limit int) ([]*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
 WHERE sub_status='active' AND sub_end_date IS NOT NULL AND sub_end_date <= $1 AND id > $2
 ORDER BY id ASC LIMIT $3;`
	return r.list(ctx, tx, q, now, afterID, normLimit(limit))
}

func (r *userRepo) ListRenewingBetween(ctx context.Context, tx repository.Tx, from, to time.Time, afterID string, limit int) ([]*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
 WHERE sub_status='active' AND sub_auto_renew AND sub_end_date > $1 AND sub_end_date <= $2 AND id > $3
 ORDER BY id ASC LIMIT $4;`
	return r.list(ctx, tx, q, from, to, afterID, normLimit(limit))
}

func (r *userRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.User, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func normLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
