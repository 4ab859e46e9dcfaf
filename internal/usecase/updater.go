package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
	"SignalPulse/internal/service/lock"
	"SignalPulse/pkg/logger"
)

const (
	DefaultPersistAttempts = 3
	DefaultPersistBackoff  = 30 * time.Millisecond
)

// AtomicUpdater persists the triggered state of a signal with bounded retry.
// Every attempt re-reads the store under the storage lock, so concurrent writers
// never lose each other's changes.
type AtomicUpdater struct {
	store    domrepo.SignalStore
	lock     *lock.StorageLock
	log      *logger.Logger
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

type UpdaterOption func(*AtomicUpdater)

func WithRetry(attempts int, backoff time.Duration) UpdaterOption {
	return func(u *AtomicUpdater) {
		if attempts > 0 {
			u.attempts = attempts
		}
		if backoff >= 0 {
			u.backoff = backoff
		}
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) UpdaterOption {
	return func(u *AtomicUpdater) { u.sleep = fn }
}

func NewAtomicUpdater(store domrepo.SignalStore, storageLock *lock.StorageLock, log *logger.Logger, opts ...UpdaterOption) *AtomicUpdater {
	if log == nil {
		log = logger.Nop()
	}
	u := &AtomicUpdater{
		store:    store,
		lock:     storageLock,
		log:      log,
		attempts: DefaultPersistAttempts,
		backoff:  DefaultPersistBackoff,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// MarkTriggered sets triggered=true on the signal identified by key.
// It succeeds without writing when the signal is already triggered.
// A missing key fails at once with ErrSignalNotFound; storage failures are
// retried and finally reported as *models.PersistError.
func (u *AtomicUpdater) MarkTriggered(ctx context.Context, key string) error {
	var lastErr error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		err := u.lock.Do(ctx, func(ctx context.Context) error {
			return u.markOnce(ctx, key)
		})
		if err == nil {
			if attempt > 1 {
				u.log.Info("triggered state persisted after retry",
					logger.String("key", key),
					logger.Int("attempt", attempt))
			}
			return nil
		}
		if errors.Is(err, models.ErrSignalNotFound) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &models.PersistError{Key: key, Attempts: attempt, Err: ctxErr}
		}

		lastErr = err
		u.log.Warn("persist triggered state failed",
			logger.String("key", key),
			logger.Int("attempt", attempt),
			logger.Error(err))
		if attempt < u.attempts {
			if err := u.sleep(ctx, u.backoff*time.Duration(attempt)); err != nil {
				return &models.PersistError{Key: key, Attempts: attempt, Err: err}
			}
		}
	}
	return &models.PersistError{Key: key, Attempts: u.attempts, Err: lastErr}
}

func (u *AtomicUpdater) markOnce(ctx context.Context, key string) error {
	signals, err := u.store.LoadSignals(ctx)
	if err != nil {
		return fmt.Errorf("reload signals: %w", err)
	}
	idx := -1
	for i := range signals {
		if signals[i].Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", models.ErrSignalNotFound, key)
	}
	if signals[idx].Triggered {
		return nil
	}
	signals[idx].Triggered = true
	if err := u.store.SaveSignals(ctx, signals); err != nil {
		return fmt.Errorf("save signals: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
