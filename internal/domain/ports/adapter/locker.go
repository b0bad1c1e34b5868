package adapter

import (
	"context"
	"time"
)

// Locker is a best-effort distributed mutex. TryLock returns domain.ErrLockBusy
// when another holder owns key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
