package di

import (
	"context"
	"fmt"
	"slices"
	"time"

	domrepo "SignalPulse/internal/domain/repository"
	domsvc "SignalPulse/internal/domain/service"
	"SignalPulse/internal/handler/api"
	internalrepo "SignalPulse/internal/repository"
	"SignalPulse/internal/service/arbiter"
	"SignalPulse/internal/service/audio"
	"SignalPulse/internal/service/cache"
	"SignalPulse/internal/service/lock"
	"SignalPulse/internal/service/notify"
	"SignalPulse/internal/usecase"
	pkgch "SignalPulse/pkg/clickhouse"
	"SignalPulse/pkg/config"
	xhttp "SignalPulse/pkg/http"
	pkgkafka "SignalPulse/pkg/kafka"
	applogger "SignalPulse/pkg/logger"
	"SignalPulse/pkg/metrics"
	pkgredis "SignalPulse/pkg/redis"
	"SignalPulse/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const connectTimeout = 10 * time.Second

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry shared by every collector.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideRedisClient connects to Redis when the signal store lives there; nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*pkgredis.Client, error) {
	if cfg.Store.Backend != "redis" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := pkgredis.NewClient(ctx,
		pkgredis.WithAddr(cfg.Redis.Host, cfg.Redis.Port),
		pkgredis.WithPassword(cfg.Redis.Password),
		pkgredis.WithDB(cfg.Redis.DB),
		pkgredis.WithPool(cfg.Redis.PoolSize, 1, 5*time.Second),
		pkgredis.WithPrefix(cfg.Store.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient connects to ClickHouse when fire history is stored there; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.History.Backend != "clickhouse" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(true, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the kafka channel is enabled; nil otherwise.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !slices.Contains(cfg.Notify.Channels, "kafka") {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogCollector aggregates repeated engine errors. Summaries go to the Kafka
// producer when one is configured, otherwise back to the log.
func ProvideLogCollector(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) *applogger.LogCollector {
	var pub applogger.Publisher = applogger.NewLogPublisher(l)
	if producer != nil {
		pub = producer
	}
	return applogger.NewLogCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.LogSummary.Interval,
		CountThreshold: cfg.LogSummary.Threshold,
		Topic:          cfg.LogSummary.Topic,
		Publisher:      pub,
		Logger:         l,
	})
}

// ProvideSignalStore creates the configured signal store backend.
func ProvideSignalStore(cfg *config.Config, redis *pkgredis.Client, l *applogger.Logger) (domrepo.SignalStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return internalrepo.NewMemorySignalStore(nil, 0), nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("signal store: redis client not configured")
		}
		return internalrepo.NewRedisSignalStore(redis, l), nil
	default:
		store, err := internalrepo.NewFileSignalStore(cfg.Store.Path, l)
		if err != nil {
			return nil, fmt.Errorf("signal store: %w", err)
		}
		return store, nil
	}
}

// ProvideFireHistory creates the configured fire history backend.
func ProvideFireHistory(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (domrepo.FireHistory, error) {
	switch cfg.History.Backend {
	case "none":
		return internalrepo.NopFireHistory{}, nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("fire history: clickhouse client not configured")
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		h, err := internalrepo.NewClickHouseFireHistory(ctx, ch, cfg.History.Table, l)
		if err != nil {
			return nil, fmt.Errorf("fire history: %w", err)
		}
		return h, nil
	default:
		return internalrepo.NewMemoryFireHistory(cfg.History.Capacity), nil
	}
}

// ProvideAlertHub creates the websocket alert hub. It is always mounted; it only
// receives alerts when the websocket channel is enabled.
func ProvideAlertHub(cfg *config.Config, l *applogger.Logger) *notify.AlertHub {
	return notify.NewAlertHub(cfg.Notify.Title, l)
}

// ProvideDispatcher fans alerts out to every configured channel.
func ProvideDispatcher(cfg *config.Config, hub *notify.AlertHub, producer *pkgkafka.Producer, l *applogger.Logger) (domsvc.Dispatcher, error) {
	channels := make([]notify.Named, 0, len(cfg.Notify.Channels))
	for _, name := range cfg.Notify.Channels {
		var d domsvc.Dispatcher
		switch name {
		case "log":
			d = notify.NewLogDispatcher(cfg.Notify.Title, l)
		case "desktop":
			d = notify.NewDesktopDispatcher(cfg.Notify.Desktop.Command, cfg.Notify.Title)
		case "telegram":
			tg, err := notify.NewTelegramDispatcher(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, cfg.Notify.Title)
			if err != nil {
				return nil, fmt.Errorf("telegram dispatcher: %w", err)
			}
			d = tg
		case "websocket":
			d = hub
		case "kafka":
			if producer == nil {
				return nil, fmt.Errorf("kafka dispatcher: producer not configured")
			}
			d = notify.NewKafkaDispatcher(producer, cfg.Notify.KafkaTopic, cfg.Notify.Title)
		default:
			return nil, fmt.Errorf("unknown notify channel %q", name)
		}
		channels = append(channels, notify.Named{Name: name, Dispatcher: d})
	}
	l.Info("notification channels ready", applogger.Strings("channels", cfg.Notify.Channels))
	return notify.NewFanOut(channels...), nil
}

// ProvideAudioPlayer creates the alert sound player.
func ProvideAudioPlayer(cfg *config.Config, l *applogger.Logger) (domsvc.AudioPlayer, error) {
	if !cfg.Audio.Enabled {
		return audio.NewLogPlayer(l), nil
	}
	p, err := audio.NewCommandPlayer(cfg.Audio.Command, cfg.Audio.DefaultFile, cfg.Audio.CustomFile)
	if err != nil {
		return nil, fmt.Errorf("audio player: %w", err)
	}
	return p, nil
}

// ProvideArbiter creates the ownership arbiter.
func ProvideArbiter(cfg *config.Config, l *applogger.Logger) *arbiter.Arbiter {
	return arbiter.New(l, arbiter.WithOwnerTTL(cfg.Monitor.OwnerTTL))
}

// ProvideKeyLocks creates the per-signal lock table.
func ProvideKeyLocks(cfg *config.Config) *lock.KeyLocks {
	return lock.NewKeyLocks(lock.WithGrace(cfg.Monitor.LockGrace))
}

// ProvideStorageLock creates the storage-wide lock shared by the updater and the admin.
func ProvideStorageLock(cfg *config.Config) *lock.StorageLock {
	return lock.NewStorageLock(cfg.Monitor.StorageLockPoll, cfg.Monitor.StorageLockTimeout)
}

// ProvideSignalCache creates the signal cache in front of the store.
func ProvideSignalCache(cfg *config.Config, store domrepo.SignalStore, rec *metrics.Recorder, l *applogger.Logger) *cache.SignalCache {
	return cache.NewSignalCache(store, rec, l, cache.WithSource(cfg.Store.Backend))
}

// ProvideAtomicUpdater creates the read-modify-write updater for triggered flags.
func ProvideAtomicUpdater(cfg *config.Config, store domrepo.SignalStore, storageLock *lock.StorageLock, l *applogger.Logger) *usecase.AtomicUpdater {
	return usecase.NewAtomicUpdater(store, storageLock, l,
		usecase.WithRetry(cfg.Monitor.PersistAttempts, cfg.Monitor.PersistBackoff))
}

// ProvideEngine creates the trigger engine.
func ProvideEngine(
	cfg *config.Config,
	arb *arbiter.Arbiter,
	locks *lock.KeyLocks,
	signalCache *cache.SignalCache,
	updater *usecase.AtomicUpdater,
	dispatcher domsvc.Dispatcher,
	player domsvc.AudioPlayer,
	history domrepo.FireHistory,
	rec *metrics.Recorder,
	collector *applogger.LogCollector,
	l *applogger.Logger,
) (*usecase.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return usecase.NewEngine(arb, locks, signalCache, updater, dispatcher, player, history, rec, l,
		usecase.WithTickInterval(cfg.Monitor.TickInterval),
		usecase.WithTolerance(cfg.Monitor.Tolerance),
		usecase.WithDispatchTimeout(cfg.Monitor.DispatchTimeout),
		usecase.WithCustomAudio(cfg.Audio.CustomFile != ""),
		usecase.WithLogCollector(collector),
		usecase.WithEngineClock(func() time.Time { return time.Now().In(loc) }),
	), nil
}

// ProvideSignalAdmin creates the signal administration use case.
func ProvideSignalAdmin(store domrepo.SignalStore, storageLock *lock.StorageLock, engine *usecase.Engine, l *applogger.Logger) *usecase.SignalAdmin {
	return usecase.NewSignalAdmin(store, storageLock, engine, l)
}

// ProvideMonitorHandler creates the HTTP handler for the monitor API.
func ProvideMonitorHandler(l *applogger.Logger, engine *usecase.Engine, admin *usecase.SignalAdmin, history domrepo.FireHistory) *api.MonitorEchoHandler {
	return api.NewMonitorEchoHandler(l, engine, admin, history)
}

// ProvideHTTPServer creates the Echo server with the monitor API and the alert websocket.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, handler *api.MonitorEchoHandler, hub *notify.AlertHub) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(xhttp.Handlers{handler, hub},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithMetrics(reg, reg, metricsPath),
	)
}

// ProvideApp creates the application server and registers every resource it must close.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	engine *usecase.Engine,
	signalCache *cache.SignalCache,
	httpServer *xhttp.Server,
	hub *notify.AlertHub,
	store domrepo.SignalStore,
	history domrepo.FireHistory,
	redis *pkgredis.Client,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	collector *applogger.LogCollector,
) *server.App {
	app := server.New(cfg, l, engine, signalCache, httpServer)
	if redis != nil {
		app.AddCloser("redis", redis.Close)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch.Close)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer.Close)
	}
	// closers run in reverse, so the collector's final flush reaches the producer
	app.AddCloser("log collector", collector.Close)
	app.AddCloser("signal store", store.Close)
	app.AddCloser("fire history", history.Close)
	app.AddCloser("alert hub", func() error {
		hub.Close()
		return nil
	})
	return app
}
