//go:build wireinject
// +build wireinject

package di

import (
	"SignalPulse/pkg/config"
	"SignalPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,

		// Metrics
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideLogCollector,

		// Repositories
		ProvideSignalStore,
		ProvideFireHistory,

		// Alert channels
		ProvideAlertHub,
		ProvideDispatcher,
		ProvideAudioPlayer,

		// Engine building blocks
		ProvideArbiter,
		ProvideKeyLocks,
		ProvideStorageLock,
		ProvideSignalCache,
		ProvideAtomicUpdater,

		// Use cases
		ProvideEngine,
		ProvideSignalAdmin,

		// HTTP
		ProvideMonitorHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
