package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Locker. It only serializes callers within one process.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) Acquire(ctx context.Context, key string, wait time.Duration) (Release, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	slot := l.slot(key)

	if wait <= 0 {
		select {
		case slot <- struct{}{}:
			return releaseOnce(slot), nil
		default:
			return nil, ErrTimeout
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return releaseOnce(slot), nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func releaseOnce(slot chan struct{}) Release {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-slot })
		return nil
	}
}
