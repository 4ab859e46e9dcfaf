package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/domain/repository"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

const loadKey = "signals"

// SignalCache is a read-through cache of the signal store.
// Each load produces a new immutable Snapshot; snapshots are never changed in place.
type SignalCache struct {
	store   repository.SignalStore
	metrics repository.Metrics
	log     *logger.Logger
	source  string
	now     func() time.Time

	group singleflight.Group

	// gen is bumped on every invalidation; a snapshot is fresh only while snapGen == gen.
	gen atomic.Uint64

	// unwatched is set while no store subscription is active; reads then bypass the snapshot.
	unwatched     atomic.Bool
	watchRetry    time.Duration
	watchRetryMax time.Duration

	mu      sync.RWMutex
	snap    *models.Snapshot
	snapGen uint64
	version uint64
}

type Option func(*SignalCache)

// WithSource sets the label used for storage load metrics.
func WithSource(name string) Option {
	return func(c *SignalCache) { c.source = name }
}

func WithClock(now func() time.Time) Option {
	return func(c *SignalCache) { c.now = now }
}

// WithWatchRetry sets the first and the largest delay between resubscribe attempts.
func WithWatchRetry(first, maxDelay time.Duration) Option {
	return func(c *SignalCache) {
		c.watchRetry = first
		c.watchRetryMax = maxDelay
	}
}

func NewSignalCache(store repository.SignalStore, metrics repository.Metrics, log *logger.Logger, opts ...Option) *SignalCache {
	if log == nil {
		log = logger.Nop()
	}
	c := &SignalCache{
		store:         store,
		metrics:       metrics,
		log:           log,
		source:        "store",
		now:           time.Now,
		watchRetry:    time.Second,
		watchRetryMax: 30 * time.Second,
	}
	// generation 0 never matches a loaded snapshot
	c.gen.Store(1)
	for _, o := range opts {
		o(c)
	}
	return c
}

// Read returns the current snapshot, loading it from the store when stale.
// Concurrent loads are collapsed into one storage read.
func (c *SignalCache) Read(ctx context.Context) (*models.Snapshot, error) {
	if s := c.fresh(); s != nil {
		c.metrics.RecordCacheHit()
		return s, nil
	}
	v, err, _ := c.group.Do(loadKey, func() (interface{}, error) {
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Snapshot), nil
}

func (c *SignalCache) fresh() *models.Snapshot {
	if c.unwatched.Load() {
		return nil
	}
	cur := c.gen.Load()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap != nil && c.snapGen == cur {
		return c.snap
	}
	return nil
}

func (c *SignalCache) load(ctx context.Context) (*models.Snapshot, error) {
	gen := c.gen.Load()
	if s := c.fresh(); s != nil {
		return s, nil
	}

	start := c.now()
	signals, err := c.store.LoadSignals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	antidelay, err := c.store.LoadAntidelaySeconds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load antidelay: %w", err)
	}
	if v, clamped := models.ClampAntidelay(antidelay); clamped {
		c.log.Warn("antidelay out of range, clamped",
			logger.Int("stored", antidelay),
			logger.Int("used", v))
		antidelay = v
	}
	c.metrics.RecordStorageLoad(c.source)
	c.metrics.RecordLatency("cache_load", c.now().Sub(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	s := &models.Snapshot{
		Version:   c.version,
		Signals:   models.CloneSignals(signals),
		Antidelay: antidelay,
		LoadedAt:  c.now(),
	}
	if gen >= c.snapGen {
		c.snap = s
		c.snapGen = gen
	}
	c.log.Debug("signal cache loaded",
		logger.Uint64("version", s.Version),
		logger.Int("signals", len(s.Signals)),
		logger.Int("antidelay", antidelay))
	return s, nil
}

// Invalidate marks the current snapshot stale. The next Read reloads it.
func (c *SignalCache) Invalidate() {
	c.gen.Add(1)
	c.metrics.RecordCacheInvalidation()
}

// Version returns the version of the most recent snapshot, 0 before the first load.
func (c *SignalCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0
	}
	return c.snap.Version
}

// Watch invalidates the cache on every store change notification until ctx is done.
// When the store's change channel closes early the cache reloads on every Read
// and Watch resubscribes with backoff.
func (c *SignalCache) Watch(ctx context.Context) {
	backoff := c.watchRetry
	for {
		ch := c.store.Watch(ctx)
		c.log.Info("watching signal store for changes", logger.String("source", c.source))
		if c.unwatched.Load() {
			// changes made while unsubscribed were never announced
			c.Invalidate()
			c.unwatched.Store(false)
		}
		if c.drain(ctx, ch) {
			backoff = c.watchRetry
		}
		if ctx.Err() != nil {
			return
		}

		c.unwatched.Store(true)
		c.metrics.RecordError(metrics.ErrWatch)
		c.log.Error("signal store watch ended, reading through until resubscribed",
			logger.String("source", c.source),
			logger.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.watchRetryMax)
	}
}

// drain invalidates on each notification until ch closes or ctx is done.
// It reports whether at least one notification arrived.
func (c *SignalCache) drain(ctx context.Context, ch <-chan struct{}) bool {
	got := false
	for {
		select {
		case <-ctx.Done():
			return got
		case _, ok := <-ch:
			if !ok {
				return got
			}
			got = true
			c.Invalidate()
		}
	}
}
