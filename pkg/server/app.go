package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"SignalPulse/internal/service/cache"
	"SignalPulse/internal/usecase"
	"SignalPulse/pkg/config"
	xhttp "SignalPulse/pkg/http"
	applogger "SignalPulse/pkg/logger"
)

// Closer releases an infrastructure resource on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	engine     *usecase.Engine
	cache      *cache.SignalCache
	httpServer *xhttp.Server
	closers    []Closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Engine,
	signalCache *cache.SignalCache,
	httpServer *xhttp.Server,
	closers ...Closer,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		engine:     engine,
		cache:      signalCache,
		httpServer: httpServer,
		closers:    closers,
	}
}

// AddCloser registers a resource closed after the loops and the HTTP server stop.
// Closers run in reverse registration order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, Closer{Name: name, Close: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the store watcher, the HTTP server and the monitoring loops,
// then blocks until ctx is done and shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.cache.Watch(runCtx)
	}()

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			cancel()
			wg.Wait()
			a.closeAll()
			return err
		}
	}

	instances := a.cfg.Monitor.Instances
	if len(instances) > 0 {
		primary := instances[0]
		if a.engine.Start(runCtx, primary) {
			a.log.Info("monitoring started", applogger.String("instance", primary))
		} else {
			a.log.Warn("primary instance denied polling ownership", applogger.String("instance", primary))
		}
		for _, id := range instances[1:] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				a.engine.RunStandby(runCtx, id, a.cfg.Monitor.StandbyRetry)
			}(id)
		}
		if len(instances) > 1 {
			a.log.Info("standby instances waiting", applogger.Strings("instances", instances[1:]))
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(cancel, &wg)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(cancel context.CancelFunc, wg *sync.WaitGroup) error {
	cancel()
	wg.Wait()

	shutdownCtx, done := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer done()
	if err := a.engine.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("monitoring loops did not stop in time", applogger.Error(err))
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	a.closeAll()
	a.log.Info("shutdown complete")
	return nil
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
}
