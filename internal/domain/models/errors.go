package models

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientStorage marks a store read or write that may succeed on retry.
	ErrTransientStorage = errors.New("transient storage error")

	// ErrArbitrationDenied is returned when another instance owns polling. It is an expected outcome.
	ErrArbitrationDenied = errors.New("arbitration denied")

	// ErrMalformedSignal is returned for signals whose timestamp cannot be parsed.
	ErrMalformedSignal = errors.New("malformed signal data")

	// ErrDispatchFailed wraps a failed notification or audio channel.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrLockContention is returned when another evaluator holds the signal key.
	ErrLockContention = errors.New("lock contention")

	// ErrNotOwner is returned when a non-owning instance tries to evaluate a tick.
	ErrNotOwner = errors.New("instance is not the polling owner")

	// ErrSignalNotFound is returned when an identity is absent from the store.
	ErrSignalNotFound = errors.New("signal not found")

	// ErrStorageLockTimeout is returned when the storage-wide lock could not be acquired in time.
	ErrStorageLockTimeout = errors.New("storage lock wait timed out")

	// ErrDuplicateSignal is returned when a list contains the same identity twice.
	ErrDuplicateSignal = errors.New("duplicate signal identity")
)

// PersistError reports that the fired state of a signal could not be persisted after all attempts.
// The alert itself was already dispatched.
type PersistError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist triggered state for %q failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *PersistError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransientStorage) hold for every PersistError.
func (e *PersistError) Is(target error) bool {
	return target == ErrTransientStorage
}
