package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*paymentRepo)(nil)

// paymentRepo is the intent ledger. transaction_id is the primary key, which
// doubles as the callback owner lookup index.
type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const intentColumns = `transaction_id, user_id, plan_id, kind, provider, amount, currency, status,
  metadata, payment_data, error, created_at, updated_at, paid_at`

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	var (
		p       model.PaymentIntent
		kind    string
		status  string
		md      []byte
		data    []byte
		errText *string
	)
	if err := row.Scan(&p.TransactionID, &p.UserID, &p.PlanID, &kind, &p.Provider, &p.Amount, &p.Currency, &status,
		&md, &data, &errText, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		return nil, mapScanErr(err)
	}
	p.Kind = model.PaymentKind(kind)
	p.Status = model.PaymentStatus(status)
	p.Error = deref(errText)
	if len(md) > 0 {
		if err := json.Unmarshal(md, &p.Metadata); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p.PaymentData); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &p, nil
}

func (r *paymentRepo) insert(ctx context.Context, tx repository.Tx, p *model.PaymentIntent, onConflict string) (bool, error) {
	md, err := json.Marshal(p.Metadata)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(p.PaymentData)
	if err != nil {
		return false, err
	}
	q := `
INSERT INTO payment_intents (` + intentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)` + onConflict + `;`
	cmd, err := execSQL(ctx, r.pool, tx, q,
		p.TransactionID, p.UserID, p.PlanID, string(p.Kind), p.Provider, p.Amount, p.Currency, string(p.Status),
		md, data, nullable(p.Error), p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	_, err := r.insert(ctx, tx, p, "")
	return err
}

func (r *paymentRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) (bool, error) {
	return r.insert(ctx, tx, p, " ON CONFLICT (transaction_id) DO NOTHING")
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, txnID string) (*model.PaymentIntent, error) {
	q := forUpdate(`SELECT `+intentColumns+` FROM payment_intents WHERE transaction_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, txnID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PaymentIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2;`
	return r.list(ctx, tx, q, userID, normLimit(limit))
}

// TransitionIfPending atomically moves a PENDING intent to a terminal status.
func (r *paymentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, txnID string, to model.PaymentStatus, data model.PaymentData, reason string, paidAt *time.Time) (bool, error) {
	if !model.CanTransition(model.PaymentStatusPending, to) {
		return false, domain.ErrInvalidArgument
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return false, err
	}
	const q = `
UPDATE payment_intents
   SET status=$2, payment_data=$3, error=$4, paid_at=$5, updated_at=NOW()
 WHERE transaction_id=$1 AND status='PENDING';`
	cmd, err := execSQL(ctx, r.pool, tx, q, txnID, string(to), raw, nullable(reason), paidAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) RefreshPaymentData(ctx context.Context, tx repository.Tx, txnID string, data model.PaymentData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	const q = `UPDATE payment_intents SET payment_data=$2, updated_at=NOW() WHERE transaction_id=$1;`
	_, err = execSQL(ctx, r.pool, tx, q, txnID, raw)
	return mapExecErr(err)
}

func (r *paymentRepo) UpdateMetadata(ctx context.Context, tx repository.Tx, txnID string, md model.IntentMetadata) error {
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	const q = `UPDATE payment_intents SET metadata=$2, updated_at=NOW() WHERE transaction_id=$1;`
	_, err = execSQL(ctx, r.pool, tx, q, txnID, raw)
	return mapExecErr(err)
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_intents
 WHERE status='PENDING' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, normLimit(limit))
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentIntent, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
