package repository

import (
	"context"
)

// -----------------------------
// Notifications Log
// -----------------------------

const NotificationRenewalNotice = "renewal_notice"

type NotificationLogRepository interface {
	// Claim records (user, kind, bucket) and reports whether this call inserted it.
	// A false result means the notice was already sent for that bucket.
	Claim(ctx context.Context, tx Tx, userID, kind, bucket string) (bool, error)
	// Release drops a claim so a failed delivery can be retried on the next run.
	Release(ctx context.Context, tx Tx, userID, kind, bucket string) error
}
