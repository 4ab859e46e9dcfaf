package usecase

import (
	"context"
	"fmt"

	"SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
	"SignalPulse/internal/service/lock"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/util"
)

// Forgetter drops in-process fired state for removed identities.
type Forgetter interface {
	Forget(keys ...string)
}

// SignalAdmin edits the signal list and antidelay. Every write runs under the
// storage lock shared with AtomicUpdater.
type SignalAdmin struct {
	store  domrepo.SignalStore
	lock   *lock.StorageLock
	forget Forgetter
	log    *logger.Logger
}

func NewSignalAdmin(store domrepo.SignalStore, storageLock *lock.StorageLock, forget Forgetter, log *logger.Logger) *SignalAdmin {
	if log == nil {
		log = logger.Nop()
	}
	return &SignalAdmin{store: store, lock: storageLock, forget: forget, log: log}
}

// List reads the store directly, bypassing the cache.
func (a *SignalAdmin) List(ctx context.Context) ([]models.Signal, int, error) {
	signals, err := a.store.LoadSignals(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load signals: %w", err)
	}
	antidelay, err := a.store.LoadAntidelaySeconds(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load antidelay: %w", err)
	}
	antidelay, _ = models.ClampAntidelay(antidelay)
	return signals, antidelay, nil
}

// Replace swaps in a new list. Identities that are already triggered in the store
// stay triggered. Returns the stored list.
func (a *SignalAdmin) Replace(ctx context.Context, incoming []models.Signal) ([]models.Signal, error) {
	if err := validateSignals(incoming); err != nil {
		return nil, err
	}
	var out []models.Signal
	var removed []string
	err := a.lock.Do(ctx, func(ctx context.Context) error {
		current, err := a.store.LoadSignals(ctx)
		if err != nil {
			return fmt.Errorf("load signals: %w", err)
		}
		triggered := make(map[string]bool, len(current))
		for _, s := range current {
			triggered[s.Key()] = s.Triggered
		}
		next := make([]models.Signal, 0, len(incoming))
		kept := make(map[string]struct{}, len(incoming))
		for _, s := range incoming {
			if triggered[s.Key()] {
				s.Triggered = true
			}
			kept[s.Key()] = struct{}{}
			next = append(next, s)
		}
		for k := range triggered {
			if _, ok := kept[k]; !ok {
				removed = append(removed, k)
			}
		}
		if err := a.store.SaveSignals(ctx, next); err != nil {
			return fmt.Errorf("save signals: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.forgetKeys(removed)
	a.log.Info("signal list replaced", logger.Int("signals", len(out)), logger.Int("removed", len(removed)))
	return out, nil
}

// Add appends one signal. Adding an identity that already exists fails with ErrDuplicateSignal.
func (a *SignalAdmin) Add(ctx context.Context, sig models.Signal) error {
	if err := validateSignals([]models.Signal{sig}); err != nil {
		return err
	}
	sig.Triggered = false
	err := a.lock.Do(ctx, func(ctx context.Context) error {
		current, err := a.store.LoadSignals(ctx)
		if err != nil {
			return fmt.Errorf("load signals: %w", err)
		}
		for _, s := range current {
			if s.Key() == sig.Key() {
				return fmt.Errorf("%w: %s", models.ErrDuplicateSignal, sig.Key())
			}
		}
		if err := a.store.SaveSignals(ctx, append(current, sig)); err != nil {
			return fmt.Errorf("save signals: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.log.Info("signal added", logger.String("key", sig.Key()))
	return nil
}

// Remove deletes the signal with the given identity.
func (a *SignalAdmin) Remove(ctx context.Context, key string) error {
	err := a.lock.Do(ctx, func(ctx context.Context) error {
		current, err := a.store.LoadSignals(ctx)
		if err != nil {
			return fmt.Errorf("load signals: %w", err)
		}
		next := current[:0:0]
		for _, s := range current {
			if s.Key() != key {
				next = append(next, s)
			}
		}
		if len(next) == len(current) {
			return fmt.Errorf("%w: %s", models.ErrSignalNotFound, key)
		}
		if err := a.store.SaveSignals(ctx, next); err != nil {
			return fmt.Errorf("save signals: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.forgetKeys([]string{key})
	a.log.Info("signal removed", logger.String("key", key))
	return nil
}

// SetAntidelay stores a new antidelay, clamped to the valid range. Triggered signals are untouched.
func (a *SignalAdmin) SetAntidelay(ctx context.Context, seconds int) (int, error) {
	v, clamped := models.ClampAntidelay(seconds)
	if clamped {
		a.log.Warn("antidelay clamped", logger.Int("requested", seconds), logger.Int("stored", v))
	}
	err := a.lock.Do(ctx, func(ctx context.Context) error {
		return a.store.SaveAntidelaySeconds(ctx, v)
	})
	if err != nil {
		return 0, fmt.Errorf("save antidelay: %w", err)
	}
	a.log.Info("antidelay updated", logger.Int("seconds", v))
	return v, nil
}

func (a *SignalAdmin) forgetKeys(keys []string) {
	if a.forget != nil && len(keys) > 0 {
		a.forget.Forget(keys...)
	}
}

func validateSignals(signals []models.Signal) error {
	seen := make(map[string]struct{}, len(signals))
	for _, s := range signals {
		if _, _, ok := util.ParseClock(s.Timestamp); !ok {
			return fmt.Errorf("%w: timestamp %q", models.ErrMalformedSignal, s.Timestamp)
		}
		if s.Asset == "" || s.Direction == "" {
			return fmt.Errorf("%w: asset and direction are required", models.ErrMalformedSignal)
		}
		if _, dup := seen[s.Key()]; dup {
			return fmt.Errorf("%w: %s", models.ErrDuplicateSignal, s.Key())
		}
		seen[s.Key()] = struct{}{}
	}
	return nil
}
