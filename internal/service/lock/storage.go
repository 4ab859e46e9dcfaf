package lock

import (
	"context"
	"sync/atomic"
	"time"

	"SignalPulse/internal/domain/models"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultWaitTimeout  = 5 * time.Second
)

// StorageLock guards read-modify-write sequences against the signal store.
// Acquisition busy-polls a flag and gives up after a bounded wait.
type StorageLock struct {
	held    atomic.Bool
	poll    time.Duration
	timeout time.Duration
}

func NewStorageLock(poll, timeout time.Duration) *StorageLock {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &StorageLock{poll: poll, timeout: timeout}
}

func (l *StorageLock) acquire(ctx context.Context) error {
	if l.held.CompareAndSwap(false, true) {
		return nil
	}
	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return models.ErrStorageLockTimeout
		case <-ticker.C:
			if l.held.CompareAndSwap(false, true) {
				return nil
			}
		}
	}
}

// Do runs fn while holding the lock. The lock is released on every return path.
func (l *StorageLock) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.held.Store(false)
	return fn(ctx)
}

// Held reports whether some caller is inside Do.
func (l *StorageLock) Held() bool { return l.held.Load() }
