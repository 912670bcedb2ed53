//go:build wireinject
// +build wireinject

package di

import (
	"MarketBrief/pkg/config"
	"MarketBrief/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCacheService,
		ProvideResolverCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideBlobStore,
		ProvideOutputSink,
		ProvideCharger,

		// Data sources
		ProvideJobRunner,
		ProvideMarketData,
		ProvideProfileSource,
		ProvideStartupSource,
		ProvideWebSearch,

		// Generative services
		ProvideLLMClient,
		ProvideLinkResolver,
		ProvideReportWriter,

		// Use cases and HTTP surface
		ProvideReportRun,
		ProvideReportsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
