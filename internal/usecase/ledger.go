package usecase

import (
	"sync"
	"time"
)

// firedLedger remembers which identities this process has dispatched and when, so a
// signal whose triggered state failed to persist, or that was removed and re-added,
// is never dispatched twice in one scheduling day.
type firedLedger struct {
	mu    sync.Mutex
	fired map[string]time.Time
}

func newFiredLedger() *firedLedger {
	return &firedLedger{fired: make(map[string]time.Time)}
}

func (l *firedLedger) Has(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.fired[key]
	return ok
}

// Claim records key as fired at now and reports whether the caller is the first to do so.
func (l *firedLedger) Claim(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.fired[key]; ok {
		return false
	}
	l.fired[key] = now
	return true
}

// Forget drops keys fired before the scheduling day of now. Keys fired that day stay.
func (l *firedLedger) Forget(now time.Time, keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		if at, ok := l.fired[k]; ok && !sameDay(at, now) {
			delete(l.fired, k)
		}
	}
}

// Retain drops every key that is not in present and was fired before the scheduling day of now.
func (l *firedLedger) Retain(present map[string]struct{}, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, at := range l.fired {
		if _, ok := present[k]; !ok && !sameDay(at, now) {
			delete(l.fired, k)
		}
	}
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
