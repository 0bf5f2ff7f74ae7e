//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/GabrielWalak/delivery-prediction/pkg/config"
	"github.com/GabrielWalak/delivery-prediction/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresDB,
		ProvideCache,

		// Repositories
		ProvideOrderStore,
		ProvideOrderSource,
		ProvideTrainingRecorder,

		// Training pipeline and engine
		ProvideFeatureProcessor,
		ProvideOutlierFilter,
		ProvideTrainer,
		ProvidePredictionEngine,

		// Transport
		ProvideDeliveryHandler,
		ProvideHTTPServer,
		ProvideOrderBatcher,
		ProvideOrderHistoryHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
