package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/repository"
	"SignalPulse/internal/service/arbiter"
	"SignalPulse/internal/service/cache"
	"SignalPulse/internal/service/lock"
	"SignalPulse/pkg/logger"
	"SignalPulse/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var errStoreDown = errors.New("store write rejected")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// flakyStore fails the first failSaves SaveSignals calls, or every call when failSaves < 0.
type flakyStore struct {
	*repository.MemorySignalStore
	failSaves atomic.Int32
	saves     atomic.Int32
}

func (s *flakyStore) SaveSignals(ctx context.Context, signals []models.Signal) error {
	s.saves.Add(1)
	if n := s.failSaves.Load(); n != 0 {
		if n > 0 {
			s.failSaves.Add(-1)
		}
		return errStoreDown
	}
	return s.MemorySignalStore.SaveSignals(ctx, signals)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []models.Signal
	err   error
	delay time.Duration
	// entered receives once per dispatch; gate, when set, holds the dispatch until closed.
	entered chan struct{}
	gate    chan struct{}
	after   func()
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, sig models.Signal) error {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.gate != nil {
		<-d.gate
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.after != nil {
		defer d.after()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sig)
	return d.err
}

func (d *recordingDispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type recordingAudio struct {
	plays  atomic.Int32
	custom atomic.Bool
	err    error
}

func (a *recordingAudio) Play(ctx context.Context, hasCustomAudio bool) error {
	a.plays.Add(1)
	a.custom.Store(hasCustomAudio)
	return a.err
}

type capturePublisher struct {
	mu    sync.Mutex
	batch [][]logger.AggregatedLogEntry
}

func (p *capturePublisher) Publish(_ context.Context, _ string, _ []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batch = append(p.batch, value.([]logger.AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) entries() []logger.AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []logger.AggregatedLogEntry
	for _, b := range p.batch {
		out = append(out, b...)
	}
	return out
}

type engineFixture struct {
	store   *flakyStore
	clock   *testClock
	disp    *recordingDispatcher
	audio   *recordingAudio
	rec     *metrics.Recorder
	history *repository.MemoryFireHistory
	arbiter *arbiter.Arbiter
	locks   *lock.KeyLocks
	cache   *cache.SignalCache
	engine  *Engine
}

func newEngineFixture(t *testing.T, signals []models.Signal, antidelay int, opts ...EngineOption) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store:   &flakyStore{MemorySignalStore: repository.NewMemorySignalStore(signals, antidelay)},
		clock:   newTestClock(at(1, 14, 30, 0)),
		disp:    &recordingDispatcher{},
		audio:   &recordingAudio{},
		rec:     metrics.New(prometheus.NewRegistry()),
		history: repository.NewMemoryFireHistory(16),
	}
	f.arbiter = arbiter.New(nil)
	f.locks = lock.NewKeyLocks(lock.WithClock(f.clock.Now))
	f.cache = cache.NewSignalCache(f.store, f.rec, nil)
	storageLock := lock.NewStorageLock(time.Millisecond, time.Second)
	updater := NewAtomicUpdater(f.store, storageLock, nil, WithSleep(func(context.Context, time.Duration) error { return nil }))
	opts = append([]EngineOption{WithEngineClock(f.clock.Now), WithTickInterval(5 * time.Millisecond)}, opts...)
	f.engine = NewEngine(f.arbiter, f.locks, f.cache, updater, f.disp, f.audio, f.history, f.rec, nil, opts...)
	t.Cleanup(func() {
		for _, id := range f.engine.Status().RunningInstances {
			f.engine.Stop(id)
		}
	})
	return f
}

func (f *engineFixture) stored(t *testing.T, key string) models.Signal {
	t.Helper()
	list, err := f.store.LoadSignals(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, s := range list {
		if s.Key() == key {
			return s
		}
	}
	t.Fatalf("signal %s not in store", key)
	return models.Signal{}
}
