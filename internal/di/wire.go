//go:build wireinject
// +build wireinject

package di

import (
	"SignalScan/pkg/config"
	"SignalScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCandleStore,
		ProvideSignalStore,

		// Market data
		ProvideBrokerRegistry,
		ProvideBroker,
		ProvideSeriesProvider,

		// Use cases
		ProvideConfluenceEngine,
		ProvideForexEngine,
		ProvideSignalPipeline,
		ProvideScanner,

		// HTTP
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
