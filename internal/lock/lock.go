package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTimeout       = errors.New("lock_timeout")
	ErrEmptyKey      = errors.New("lock key is empty")
	ErrNotConfigured = errors.New("lock client not configured")
)

// Release frees a held lock. Calling it more than once is a no-op.
type Release func(ctx context.Context) error

// Locker grants mutually exclusive access to a named resource. Acquire blocks
// until the lock is held, ctx is done, or wait elapses (ErrTimeout).
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (Release, error)
}
