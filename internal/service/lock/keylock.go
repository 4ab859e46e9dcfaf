// Package lock holds the in-process mutual exclusion used by the trigger engine.
package lock

import (
	"sort"
	"sync"
	"time"
)

// DefaultGrace bounds how long a key may stay held without an explicit unlock.
const DefaultGrace = 2 * time.Second

type entry struct {
	holder     string
	acquiredAt time.Time
	expiresAt  time.Time
}

// KeyLocks is a process-wide, non-blocking lock table keyed by signal identity.
// Every hold expires after the grace period so a crashed holder cannot wedge a key.
type KeyLocks struct {
	mu    sync.Mutex
	m     map[string]*entry
	grace time.Duration
	now   func() time.Time
}

type Option func(*KeyLocks)

func WithGrace(d time.Duration) Option {
	return func(k *KeyLocks) {
		if d > 0 {
			k.grace = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(k *KeyLocks) { k.now = now }
}

func NewKeyLocks(opts ...Option) *KeyLocks {
	k := &KeyLocks{m: make(map[string]*entry), grace: DefaultGrace, now: time.Now}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Grace returns the configured hold bound.
func (k *KeyLocks) Grace() time.Duration { return k.grace }

// Lock acquires key for holder and returns false at once if it is held by anyone,
// including holder itself.
func (k *KeyLocks) Lock(key, holder string) bool {
	now := k.now()
	k.mu.Lock()
	defer k.mu.Unlock()

	if e, ok := k.m[key]; ok && now.Before(e.expiresAt) {
		return false
	}
	k.m[key] = &entry{holder: holder, acquiredAt: now, expiresAt: now.Add(k.grace)}
	return true
}

// Unlock releases key at once if holder still holds it.
func (k *KeyLocks) Unlock(key, holder string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if e, ok := k.m[key]; ok && e.holder == holder {
		delete(k.m, key)
	}
}

// ReleaseAfter keeps key held for one more grace period, then lets it expire.
func (k *KeyLocks) ReleaseAfter(key, holder string) {
	now := k.now()
	k.mu.Lock()
	defer k.mu.Unlock()

	if e, ok := k.m[key]; ok && e.holder == holder {
		e.expiresAt = now.Add(k.grace)
	}
}

// ReleaseHolder drops every key held by holder.
func (k *KeyLocks) ReleaseHolder(holder string) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := 0
	for key, e := range k.m {
		if e.holder == holder {
			delete(k.m, key)
			n++
		}
	}
	return n
}

// InFlight sweeps expired holds and returns the keys still held, sorted.
func (k *KeyLocks) InFlight() []string {
	now := k.now()
	k.mu.Lock()
	defer k.mu.Unlock()

	keys := make([]string, 0, len(k.m))
	for key, e := range k.m {
		if !now.Before(e.expiresAt) {
			delete(k.m, key)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
