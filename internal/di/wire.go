//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RoomArb/pkg/config"
	"RoomArb/pkg/server"
)

var pipelineSet = wire.NewSet(
	// Observability
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,

	// Infrastructure clients
	ProvidePostgresClient,
	ProvideClickHouseClient,
	ProvideCache,
	ProvideKafkaProducer,

	// Repositories
	ProvideSignalStore,
	ProvideCompetitorStore,
	ProvideKafkaPublisher,
	ProvideLivePriceClient,

	// Core services and use cases
	ProvideSynthesizer,
	ProvideAnalysisUseCase,
	ProvidePredictor,
	ProvideOptimizer,
	ProvideOpportunityFinder,
	ProvidePortfolioOptimizer,

	// HTTP
	ProvideRateLimiter,
	ProvideHandler,
	ProvideApp,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(pipelineSet)
	return &server.App{}, nil
}

// InitializeComponents wires the same graph for one-shot commands.
func InitializeComponents(cfg *config.Config) (*Components, error) {
	wire.Build(pipelineSet, ProvideComponents)
	return &Components{}, nil
}
