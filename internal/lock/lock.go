// Package lock provides short-lived mutual exclusion keyed by string. The
// session manager uses it to serialize refresh-token rotation per user so two
// concurrent refreshes cannot both persist a new token.
package lock

import (
	"context"
	"time"
)

// Locker acquires and releases named locks. Acquire reports false without an
// error when the lock is already held. Locks expire after ttl even if never
// released.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
