//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RiskLens/pkg/config"
	"RiskLens/pkg/server"
)

var coreSet = wire.NewSet(
	// Ambient
	ProvideLogger,
	ProvideRegisterer,
	ProvideMetrics,

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideCache,
	ProvideKafkaProducer,

	// Repositories
	ProvideSeriesStore,
	ProvideReportPublisher,

	// Services and use cases
	ProvideInterpreter,
	ProvideRiskConfig,
	ProvideRiskUseCase,
	ProvideSuiteUseCase,
	ProvideIngestService,
)

// InitializeApp wires up the long-running service.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		coreSet,

		// Async requests
		ProvideRequestQueue,
		ProvideRiskJobs,

		// Transport
		ProvideEndpointMetrics,
		ProvideLimiter,
		ProvideRiskHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideKafkaRequestsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeToolkit wires up the dependencies of the one-shot CLI commands.
func InitializeToolkit(cfg *config.Config) (*Toolkit, error) {
	wire.Build(
		coreSet,
		ProvideToolkit,
	)
	return &Toolkit{}, nil
}
