//go:build wireinject
// +build wireinject

package di

import (
	"BTCPulse/internal/usecase"
	"BTCPulse/pkg/config"
	"BTCPulse/pkg/server"

	"github.com/google/wire"
)

var baseSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
)

var modelSet = wire.NewSet(
	ProvideFileStore,
	ProvideExtractor,
)

// InitializePipeline wires the fetch-validate-persist pipeline.
func InitializePipeline(cfg *config.Config) (*usecase.Pipeline, func(), error) {
	wire.Build(
		baseSet,
		ProvideMetrics,

		// Sources and persistence
		ProvideSources,
		ProvideFileStore,
		ProvideFetchOrchestrator,
		ProvideValidator,
		ProvideAuditor,

		// Optional infrastructure
		ProvideCache,
		ProvideClickHouseMirror,
		ProvideEventPublisher,

		ProvidePipeline,
	)
	return nil, nil, nil
}

// InitializeTrainer wires the regime model training run.
func InitializeTrainer(cfg *config.Config) (*usecase.TrainingUseCase, func(), error) {
	wire.Build(
		baseSet,
		modelSet,
		ProvideTrainer,
		ProvideTrainingUseCase,
	)
	return nil, nil, nil
}

// InitializePredictor wires the regime predictor over the persisted series.
func InitializePredictor(cfg *config.Config) (*usecase.PredictionUseCase, func(), error) {
	wire.Build(
		baseSet,
		modelSet,
		ProvideClassifier,
		ProvidePredictionUseCase,
	)
	return nil, nil, nil
}

// InitializeServer wires the HTTP and websocket service.
func InitializeServer(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		baseSet,
		modelSet,
		ProvideMetrics,
		ProvideClassifier,
		ProvidePredictionUseCase,

		// Query side
		ProvideCache,
		ProvideMarketQuery,
		ProvideMarketHandler,
		ProvidePriceStream,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideSeriesEventsHandler,

		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeBackup wires the data directory snapshot job.
func InitializeBackup(cfg *config.Config) (*usecase.BackupUseCase, func(), error) {
	wire.Build(
		baseSet,
		ProvideBackupUseCase,
	)
	return nil, nil, nil
}
