// Package arbiter decides which execution context owns the monitoring loop.
package arbiter

import (
	"sync"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/pkg/logger"
)

// Arbiter hands out the single ownership token. At most one owner exists at a time.
type Arbiter struct {
	mu          sync.Mutex
	ownerID     string
	acquiredAt  time.Time
	heartbeatAt time.Time

	ttl time.Duration
	now func() time.Time
	log *logger.Logger
}

type Option func(*Arbiter)

// WithOwnerTTL allows a contender to take over when the owner has not sent a
// heartbeat for ttl. Zero keeps ownership until explicit release.
func WithOwnerTTL(ttl time.Duration) Option {
	return func(a *Arbiter) { a.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(a *Arbiter) { a.now = now }
}

func New(log *logger.Logger, opts ...Option) *Arbiter {
	if log == nil {
		log = logger.Nop()
	}
	a := &Arbiter{now: time.Now, log: log}
	for _, o := range opts {
		o(a)
	}
	return a
}

// TryAcquire grants ownership to id if nobody owns the loop, or if id already does.
func (a *Arbiter) TryAcquire(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	switch {
	case a.ownerID == "":
	case a.ownerID == id:
		a.heartbeatAt = now
		return true
	case a.ttl > 0 && now.Sub(a.heartbeatAt) > a.ttl:
		a.log.Warn("superseding stale owner",
			logger.String("previous_owner", a.ownerID),
			logger.String("owner", id),
			logger.Time("last_heartbeat", a.heartbeatAt))
	default:
		return false
	}

	a.ownerID = id
	a.acquiredAt = now
	a.heartbeatAt = now
	a.log.Info("ownership acquired", logger.String("owner", id))
	return true
}

// Release gives up ownership. Calls from a non-owner are ignored.
func (a *Arbiter) Release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ownerID != id {
		if a.ownerID != "" {
			a.log.Warn("release by non-owner ignored",
				logger.String("caller", id),
				logger.String("owner", a.ownerID))
		}
		return
	}
	a.ownerID = ""
	a.acquiredAt = time.Time{}
	a.heartbeatAt = time.Time{}
	a.log.Info("ownership released", logger.String("owner", id))
}

// Heartbeat refreshes the owner's liveness and reports whether id still owns the loop.
func (a *Arbiter) Heartbeat(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ownerID != id {
		return false
	}
	a.heartbeatAt = a.now()
	return true
}

func (a *Arbiter) IsOwner(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return id != "" && a.ownerID == id
}

func (a *Arbiter) Owner() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ownerID
}

// Status returns a copy of the current token.
func (a *Arbiter) Status() models.OwnershipToken {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok := models.OwnershipToken{OwnerID: a.ownerID}
	if a.ownerID != "" {
		acq, hb := a.acquiredAt, a.heartbeatAt
		tok.AcquiredAt = &acq
		tok.HeartbeatAt = &hb
	}
	return tok
}
