package repository

import (
	"context"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
)

// OrderSource yields historical orders for training.
type OrderSource interface {
	Name() string
	FetchOrders(ctx context.Context) ([]models.OrderRecord, error)
}

// OrderStorage persists delivered orders arriving from the stream.
type OrderStorage interface {
	Init(ctx context.Context) error // ensure tables
	Store(ctx context.Context, o *models.OrderRecord) error
	StoreBatch(ctx context.Context, orders []models.OrderRecord) error
	Health(ctx context.Context) error
	Close() error
}

// TrainingRecorder keeps an audit trail of training runs.
type TrainingRecorder interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, r models.TrainingReport) error
	Close() error
}

type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, ev models.PredictionEvent) error
	Close() error
}

// PredictionCache memoizes predicted durations per model version and feature vector.
type PredictionCache interface {
	Get(ctx context.Context, version string, f models.DeliveryFeatures) (float64, bool, error)
	Set(ctx context.Context, version string, f models.DeliveryFeatures, days float64) error
}

type Metrics interface {
	RecordPrediction(cached bool)
	RecordWarning(warning string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordTraining(ok bool, seconds, r2, mae float64, records, outliers int)
	RecordIngest(ok bool)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordPrediction(bool)                                    {}
func (NopMetrics) RecordWarning(string)                                     {}
func (NopMetrics) RecordError(string)                                       {}
func (NopMetrics) RecordLatency(string, float64)                            {}
func (NopMetrics) RecordTraining(bool, float64, float64, float64, int, int) {}
func (NopMetrics) RecordIngest(bool)                                        {}

// Since is a helper for RecordLatency.
func Since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
