package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	domrepo "github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/service"
	applogger "github.com/GabrielWalak/delivery-prediction/pkg/logger"
)

const PredictionMessage = "Validated prediction available"

var (
	ErrNotReady       = errors.New("prediction engine is not initialized")
	ErrAlreadyTrained = errors.New("prediction engine training was already attempted")
)

// MissingFeatureError means the trained model expects a column the request
// schema does not provide.
type MissingFeatureError struct {
	Feature string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("payload missing expected feature: %s", e.Feature)
}

// warmState is everything a warm engine reads on the request path. It is
// never mutated after publication.
type warmState struct {
	model    service.Regressor
	features []string
	metrics  models.ModelMetrics
	records  int
	version  string
}

// snapshot is the published engine state. init and warm change together so
// Init, Ready and Predict never disagree.
type snapshot struct {
	init models.InitResult
	warm *warmState
}

// PredictionEngine owns the trained model. Train runs once; all other methods
// only read the published state and are safe for concurrent use.
type PredictionEngine struct {
	source    domrepo.OrderSource
	processor service.FeatureProcessor
	filter    service.OutlierFilter
	trainer   service.Trainer
	cache     domrepo.PredictionCache
	publisher domrepo.PredictionPublisher
	metrics   domrepo.Metrics
	log       *applogger.Logger
	now       func() time.Time

	attempted atomic.Bool
	current   atomic.Pointer[snapshot]
}

// EngineOption configures PredictionEngine.
type EngineOption func(*PredictionEngine)

// WithPredictionCache enables memoized predictions.
func WithPredictionCache(c domrepo.PredictionCache) EngineOption {
	return func(e *PredictionEngine) {
		e.cache = c
	}
}

// WithPredictionPublisher publishes an event per served prediction.
func WithPredictionPublisher(p domrepo.PredictionPublisher) EngineOption {
	return func(e *PredictionEngine) {
		e.publisher = p
	}
}

func WithEngineMetrics(m domrepo.Metrics) EngineOption {
	return func(e *PredictionEngine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithEngineLogger(l *applogger.Logger) EngineOption {
	return func(e *PredictionEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *PredictionEngine) {
		e.now = now
	}
}

func NewPredictionEngine(
	source domrepo.OrderSource,
	processor service.FeatureProcessor,
	filter service.OutlierFilter,
	trainer service.Trainer,
	opts ...EngineOption,
) *PredictionEngine {
	e := &PredictionEngine{
		source:    source,
		processor: processor,
		filter:    filter,
		trainer:   trainer,
		metrics:   domrepo.NopMetrics{},
		log:       applogger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(&snapshot{init: models.NotReady(nil)})
	return e
}

// Train fetches orders, engineers features, drops outliers, fits and
// evaluates the model, then flips the engine to warm. Only the first call does
// any work. On failure the engine stays cold and InitResult carries the reason.
func (e *PredictionEngine) Train(ctx context.Context) (models.TrainingReport, error) {
	if !e.attempted.CompareAndSwap(false, true) {
		return models.TrainingReport{}, ErrAlreadyTrained
	}

	start := e.now()
	report := models.TrainingReport{Source: e.source.Name(), TrainedAt: start}

	res, err := e.runPipeline(ctx, &report)
	report.Duration = e.now().Sub(start)
	if err != nil {
		report.Error = err.Error()
		failed := models.NotReady(err)
		failed.Report = report
		e.current.Store(&snapshot{init: failed})
		e.metrics.RecordTraining(false, report.Duration.Seconds(), 0, 0, 0, 0)
		e.log.Error("Prediction engine training failed",
			applogger.String("source", report.Source),
			applogger.Duration("duration", report.Duration),
			applogger.Error(err),
		)
		return report, err
	}

	report.Success = true
	report.Records = res.Records
	report.Features = res.Features
	report.Metrics = res.Metrics

	e.current.Store(&snapshot{
		init: models.InitResult{Ready: true, Report: report},
		warm: &warmState{
			model:    res.Model,
			features: append([]string(nil), res.Features...),
			metrics:  res.Metrics,
			records:  res.Records,
			version:  report.Version(),
		},
	})
	e.metrics.RecordTraining(true, report.Duration.Seconds(), res.Metrics.R2, res.Metrics.MAE, res.Records, report.OutliersRemoved)

	e.log.Info("Prediction engine ready",
		applogger.String("source", report.Source),
		applogger.Int("raw_records", report.RawRecords),
		applogger.Int("records", report.Records),
		applogger.Int("outliers_removed", report.OutliersRemoved),
		applogger.Float64("r2", res.Metrics.R2),
		applogger.Float64("mae", res.Metrics.MAE),
		applogger.Duration("duration", report.Duration),
	)
	return report, nil
}

func (e *PredictionEngine) runPipeline(ctx context.Context, report *models.TrainingReport) (service.TrainResult, error) {
	orders, err := e.source.FetchOrders(ctx)
	if err != nil {
		return service.TrainResult{}, fmt.Errorf("fetch orders: %w", err)
	}
	report.RawRecords = len(orders)

	ds, err := e.processor.Process(orders)
	if err != nil {
		return service.TrainResult{}, fmt.Errorf("process features: %w", err)
	}

	ds, removed, err := e.filter.Filter(ds)
	if err != nil {
		return service.TrainResult{}, fmt.Errorf("filter outliers: %w", err)
	}
	report.OutliersRemoved = removed

	res, err := e.trainer.TrainAndEvaluate(ctx, ds)
	if err != nil {
		return service.TrainResult{}, fmt.Errorf("train: %w", err)
	}
	if res.Model == nil || len(res.Features) == 0 {
		return service.TrainResult{}, errors.New("train: trainer returned no model")
	}
	return res, nil
}

// Init returns the outcome of the startup training attempt.
func (e *PredictionEngine) Init() models.InitResult {
	return e.current.Load().init
}

// Ready reports whether the engine is warm.
func (e *PredictionEngine) Ready() bool {
	return e.current.Load().warm != nil
}

// Predict returns the predicted delivery time in days. The feature vector is
// laid out in the order the model was trained with.
func (e *PredictionEngine) Predict(f models.DeliveryFeatures) (float64, error) {
	st := e.current.Load().warm
	if st == nil {
		return 0, ErrNotReady
	}
	return st.predict(f)
}

func (st *warmState) predict(f models.DeliveryFeatures) (float64, error) {
	row := make([]float64, len(st.features))
	for i, name := range st.features {
		v, ok := f.Value(name)
		if !ok {
			return 0, &MissingFeatureError{Feature: name}
		}
		row[i] = v
	}
	return st.model.Predict(row), nil
}

// DescribeWarnings lists advisories for unusual but valid inputs.
func (e *PredictionEngine) DescribeWarnings(f models.DeliveryFeatures) []string {
	return DescribeWarnings(f)
}

// DescribeWarnings checks, in this order: distance high/low, weight
// high/low, freight high, volume high. It never returns nil.
func DescribeWarnings(f models.DeliveryFeatures) []string {
	warnings := []string{}
	if f.DistanceKm > 3000 {
		warnings = append(warnings, "very large distance (>3000 km)")
	}
	if f.DistanceKm < 10 {
		warnings = append(warnings, "very small distance (<10 km)")
	}
	if f.WeightG > 20000 {
		warnings = append(warnings, "very high weight (>20 kg)")
	}
	if f.WeightG < 100 {
		warnings = append(warnings, "very low weight (<100 g)")
	}
	if f.FreightValue > 500 {
		warnings = append(warnings, "very high shipping price (>500 BRL)")
	}
	if f.VolCm3 > 50000 {
		warnings = append(warnings, "very large volume (>50000 cm³)")
	}
	return warnings
}

// Estimate serves POST /predict for an already validated request. It fails
// with ErrNotReady when cold and with *MissingFeatureError on schema drift.
func (e *PredictionEngine) Estimate(ctx context.Context, req models.DeliveryEstimateRequest) (*models.PredictionResponse, error) {
	st := e.current.Load().warm
	if st == nil {
		return nil, ErrNotReady
	}

	start := e.now()
	f := req.Features()

	days, cached := e.cachedPrediction(ctx, st, f)
	if !cached {
		var err error
		days, err = st.predict(f)
		if err != nil {
			e.metrics.RecordError("missing_feature")
			return nil, err
		}
		e.storePrediction(ctx, st, f, days)
	}

	warnings := DescribeWarnings(f)
	e.metrics.RecordPrediction(cached)
	for _, w := range warnings {
		e.metrics.RecordWarning(w)
	}
	e.metrics.RecordLatency("predict", e.now().Sub(start).Seconds())

	e.publish(ctx, models.PredictionEvent{
		Features:      f,
		PredictedDays: days,
		Warnings:      warnings,
		ModelVersion:  st.version,
		Cached:        cached,
		At:            e.now().UTC(),
	})

	return &models.PredictionResponse{
		PredictedDays: days,
		R2Score:       finiteOrZero(st.metrics.R2),
		MAE:           finiteOrZero(st.metrics.MAE),
		Warnings:      warnings,
		Message:       PredictionMessage,
	}, nil
}

func (e *PredictionEngine) cachedPrediction(ctx context.Context, st *warmState, f models.DeliveryFeatures) (float64, bool) {
	if e.cache == nil {
		return 0, false
	}
	days, ok, err := e.cache.Get(ctx, st.version, f)
	if err != nil {
		e.metrics.RecordError("cache_get")
		e.log.Warn("Prediction cache read failed", applogger.Error(err))
		return 0, false
	}
	return days, ok
}

func (e *PredictionEngine) storePrediction(ctx context.Context, st *warmState, f models.DeliveryFeatures, days float64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, st.version, f, days); err != nil {
		e.metrics.RecordError("cache_set")
		e.log.Warn("Prediction cache write failed", applogger.Error(err))
	}
}

func (e *PredictionEngine) publish(ctx context.Context, ev models.PredictionEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishPrediction(ctx, ev); err != nil {
		e.metrics.RecordError("publish_prediction")
		e.log.Warn("Prediction event publish failed", applogger.Error(err))
	}
}

// Health returns the warm-state summary, or ErrNotReady.
func (e *PredictionEngine) Health() (*models.HealthResponse, error) {
	st := e.current.Load().warm
	if st == nil {
		return nil, ErrNotReady
	}
	return &models.HealthResponse{
		Status:  "ready",
		Records: st.records,
		R2Score: finitePtr(st.metrics.R2),
		MAE:     finitePtr(st.metrics.MAE),
	}, nil
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
