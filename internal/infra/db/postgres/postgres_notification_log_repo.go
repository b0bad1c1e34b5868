package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"homeaura-subscription/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

type notificationLogRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationLogRepo(pool *pgxpool.Pool) repository.NotificationLogRepository {
	return &notificationLogRepo{pool: pool}
}

// Claim relies on the UNIQUE (user_id, kind, bucket) constraint; a conflicting
// insert affects no rows and reports false.
func (r *notificationLogRepo) Claim(ctx context.Context, tx repository.Tx, userID, kind, bucket string) (bool, error) {
	const q = `
INSERT INTO notification_log (user_id, kind, bucket)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, kind, bucket) DO NOTHING`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, kind, bucket)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *notificationLogRepo) Release(ctx context.Context, tx repository.Tx, userID, kind, bucket string) error {
	const q = `DELETE FROM notification_log WHERE user_id=$1 AND kind=$2 AND bucket=$3`
	_, err := execSQL(ctx, r.pool, tx, q, userID, kind, bucket)
	return mapExecErr(err)
}
