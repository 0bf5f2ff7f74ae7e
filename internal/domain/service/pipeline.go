package service

import (
	"context"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
)

// FeatureProcessor turns raw orders into a training table.
type FeatureProcessor interface {
	Process(orders []models.OrderRecord) (models.Dataset, error)
}

// OutlierFilter drops atypical rows and reports how many were removed.
type OutlierFilter interface {
	Filter(ds models.Dataset) (models.Dataset, int, error)
}

// Regressor is a fitted model. Predict must be safe for concurrent use.
type Regressor interface {
	Predict(row []float64) float64
}

// TrainResult is what a Trainer hands back to the engine.
type TrainResult struct {
	Model    Regressor
	Features []string
	Metrics  models.ModelMetrics
	Records  int
}

// Trainer fits and evaluates a regressor on a hold-out split.
type Trainer interface {
	TrainAndEvaluate(ctx context.Context, ds models.Dataset) (TrainResult, error)
}
