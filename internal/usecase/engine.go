package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
	domsvc "SignalPulse/internal/domain/service"
	"SignalPulse/internal/service/arbiter"
	"SignalPulse/internal/service/cache"
	"SignalPulse/internal/service/lock"
	"SignalPulse/pkg/logger"
)

const (
	DefaultTickInterval    = time.Second
	DefaultDispatchTimeout = 10 * time.Second
)

// Engine is the trigger scheduler. It owns the ownership arbiter, the per-signal
// lock table and the fired ledger shared by every execution context in the process.
type Engine struct {
	arbiter    *arbiter.Arbiter
	locks      *lock.KeyLocks
	cache      *cache.SignalCache
	updater    *AtomicUpdater
	dispatcher domsvc.Dispatcher
	audio      domsvc.AudioPlayer
	history    domrepo.FireHistory
	metrics    domrepo.Metrics
	log        *logger.Logger
	collector  *logger.LogCollector
	ledger     *firedLedger

	tickInterval    time.Duration
	tolerance       time.Duration
	dispatchTimeout time.Duration
	customAudio     bool
	now             func() time.Time

	mu    sync.Mutex
	loops map[string]*loop
}

// loop is one running monitoring loop.
type loop struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	stopped  bool
	explicit bool
}

type EngineOption func(*Engine)

func WithTickInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

func WithTolerance(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.tolerance = d
		}
	}
}

func WithDispatchTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.dispatchTimeout = d
		}
	}
}

// WithCustomAudio tells the audio player whether a user-supplied sound is configured.
func WithCustomAudio(custom bool) EngineOption {
	return func(e *Engine) { e.customAudio = custom }
}

// WithLogCollector aggregates repeated data and dispatch errors through c.
func WithLogCollector(c *logger.LogCollector) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.collector = c
		}
	}
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	arb *arbiter.Arbiter,
	locks *lock.KeyLocks,
	signalCache *cache.SignalCache,
	updater *AtomicUpdater,
	dispatcher domsvc.Dispatcher,
	audio domsvc.AudioPlayer,
	history domrepo.FireHistory,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...EngineOption,
) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		arbiter:         arb,
		locks:           locks,
		cache:           signalCache,
		updater:         updater,
		dispatcher:      dispatcher,
		audio:           audio,
		history:         history,
		metrics:         metrics,
		log:             log,
		ledger:          newFiredLedger(),
		tickInterval:    DefaultTickInterval,
		tolerance:       DefaultTolerance,
		dispatchTimeout: DefaultDispatchTimeout,
		now:             time.Now,
		loops:           make(map[string]*loop),
	}
	for _, o := range opts {
		o(e)
	}
	if e.collector == nil {
		e.collector = logger.NewLogCollector(&logger.CollectionConfig{
			CountThreshold: 1000,
			Publisher:      logger.NewLogPublisher(log),
			Logger:         log,
		})
	}
	return e
}

// Start begins the monitoring loop for id if the arbiter grants ownership.
// It returns false, without error, when another instance owns polling.
// The loop ends on Stop, when ctx is done, or when it discovers it lost ownership.
func (e *Engine) Start(ctx context.Context, id string) bool {
	if !e.arbiter.TryAcquire(id) {
		e.log.Debug("arbitration denied", logger.String("instance", id), logger.String("owner", e.arbiter.Owner()))
		return false
	}

	e.mu.Lock()
	if _, running := e.loops[id]; running {
		e.mu.Unlock()
		return true
	}
	loopCtx, cancel := context.WithCancel(ctx)
	l := &loop{id: id, cancel: cancel, done: make(chan struct{})}
	e.loops[id] = l
	e.mu.Unlock()

	e.log.Info("monitoring loop started",
		logger.String("instance", id),
		logger.Duration("tick_ms", e.tickInterval))
	go e.run(loopCtx, l)
	return true
}

// Stop releases ownership held by id, clears its lock holds and cancels its loop.
// A tick already running may finish its dispatches, but no tick starts after Stop returns.
func (e *Engine) Stop(id string) {
	e.mu.Lock()
	l := e.loops[id]
	delete(e.loops, id)
	e.mu.Unlock()

	if l != nil {
		l.mu.Lock()
		l.stopped = true
		l.explicit = true
		l.mu.Unlock()
		l.cancel()
	}
	e.arbiter.Release(id)
	e.locks.ReleaseHolder(id)
	if l != nil {
		e.log.Info("monitoring loop stopped", logger.String("instance", id))
	}
}

// Shutdown stops every running loop and waits for in-flight ticks to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	loops := make([]*loop, 0, len(e.loops))
	for _, l := range e.loops {
		loops = append(loops, l)
	}
	e.mu.Unlock()

	for _, l := range loops {
		e.Stop(l.id)
	}
	for _, l := range loops {
		select {
		case <-l.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) run(ctx context.Context, l *loop) {
	defer close(l.done)
	defer e.detach(l)

	if !e.tickOnce(ctx, l) {
		return
	}
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.tickOnce(ctx, l) {
				return
			}
		}
	}
}

// tickOnce runs a tick unless the loop was stopped. It returns false when the loop must end.
func (e *Engine) tickOnce(ctx context.Context, l *loop) bool {
	l.mu.Lock()
	if l.stopped || ctx.Err() != nil {
		l.mu.Unlock()
		return false
	}
	// the ownership check happens under l.mu so a tick either begins before Stop or not at all
	owner := e.arbiter.Heartbeat(l.id)
	l.mu.Unlock()
	if !owner {
		e.log.Warn("ownership lost, loop terminating", logger.String("instance", l.id))
		return false
	}

	// In-flight dispatches may finish after Stop, so the tick does not inherit cancellation.
	if _, err := e.evaluate(context.WithoutCancel(ctx), l.id, e.now()); err != nil {
		e.log.Error("tick failed", logger.String("instance", l.id), logger.Error(err))
	}
	return true
}

// detach cleans up after a loop that ended on its own (ctx done or ownership lost).
func (e *Engine) detach(l *loop) {
	e.mu.Lock()
	current, ok := e.loops[l.id]
	if ok && current == l {
		delete(e.loops, l.id)
	}
	e.mu.Unlock()
	if !ok || current != l {
		return
	}
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	if e.arbiter.IsOwner(l.id) {
		e.arbiter.Release(l.id)
	}
	e.locks.ReleaseHolder(l.id)
	e.log.Info("monitoring loop ended", logger.String("instance", l.id))
}

// Wake runs a single evaluation for id, as a platform wake-up would.
// It is denied while another instance owns polling.
func (e *Engine) Wake(ctx context.Context, id string) (models.TickReport, error) {
	wasOwner := e.arbiter.IsOwner(id)
	if !e.arbiter.TryAcquire(id) {
		return models.TickReport{InstanceID: id}, models.ErrArbitrationDenied
	}
	if !wasOwner {
		defer e.arbiter.Release(id)
	}
	// the caller going away must not abort dispatch or persistence mid-fire
	return e.Tick(context.WithoutCancel(ctx), id, e.now())
}

// RunStandby keeps contending for ownership every interval until ctx is done
// or the loop it won is stopped explicitly. Used for background contexts that
// take over once the foreground loop stops.
func (e *Engine) RunStandby(ctx context.Context, id string, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if e.Start(ctx, id) {
			e.mu.Lock()
			l := e.loops[id]
			e.mu.Unlock()
			if l != nil {
				select {
				case <-ctx.Done():
					return
				case <-l.done:
				}
				l.mu.Lock()
				explicit := l.explicit
				l.mu.Unlock()
				if explicit {
					return
				}
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Forget lets the given identities fire again in this process once the scheduling day
// they fired on has passed. Used when signals are removed.
func (e *Engine) Forget(keys ...string) {
	e.ledger.Forget(e.now(), keys...)
}

// Running reports whether a loop for id is active.
func (e *Engine) Running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.loops[id]
	return ok
}

// Status returns the diagnostics view.
func (e *Engine) Status() models.EngineStatus {
	tok := e.arbiter.Status()
	e.mu.Lock()
	running := make([]string, 0, len(e.loops))
	for id := range e.loops {
		running = append(running, id)
	}
	e.mu.Unlock()
	sort.Strings(running)

	return models.EngineStatus{
		OwnerID:          tok.OwnerID,
		IsActive:         tok.Active(),
		AcquiredAt:       tok.AcquiredAt,
		InFlightKeys:     e.locks.InFlight(),
		RunningInstances: running,
		CacheVersion:     e.cache.Version(),
		Metrics:          e.metrics.Snapshot(),
	}
}
