package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	trainingRuns *prometheus.CounterVec
	trainingTime prometheus.Gauge
	modelReady   prometheus.Gauge
	modelR2      prometheus.Gauge
	modelMAE     prometheus.Gauge
	modelRecords prometheus.Gauge
	outliers     prometheus.Gauge
	warnings     *prometheus.CounterVec
	ordersIngest *prometheus.CounterVec
}

// New creates a recorder registered on reg; pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_predictions_total",
				Help: "Predictions served, by source (model or cache)",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "delivery_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"operation"},
		),
		trainingRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_training_runs_total",
				Help: "Training attempts by result",
			},
			[]string{"result"},
		),
		trainingTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_training_duration_seconds",
			Help: "Wall time of the last successful training run",
		}),
		modelReady: f.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_model_ready",
			Help: "1 when the prediction engine is warm",
		}),
		modelR2: f.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_model_r2",
			Help: "Hold-out r2 of the active model",
		}),
		modelMAE: f.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_model_mae_days",
			Help: "Hold-out mean absolute error of the active model, in days",
		}),
		modelRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_model_training_records",
			Help: "Rows used to fit the active model",
		}),
		outliers: f.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_model_outliers_removed",
			Help: "Rows dropped by the outlier filter before the last fit",
		}),
		warnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_prediction_warnings_total",
				Help: "Advisory warnings attached to predictions",
			},
			[]string{"warning"},
		),
		ordersIngest: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_orders_ingested_total",
				Help: "Delivered orders consumed from the stream, by result",
			},
			[]string{"result"},
		),
	}
}

// RecordPrediction counts a served prediction.
func (r *Recorder) RecordPrediction(cached bool) {
	source := "model"
	if cached {
		source = "cache"
	}
	r.predictions.WithLabelValues(source).Inc()
}

// RecordWarning counts an advisory attached to a prediction.
func (r *Recorder) RecordWarning(warning string) {
	r.warnings.WithLabelValues(warning).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTraining publishes the outcome of a training attempt.
func (r *Recorder) RecordTraining(ok bool, seconds, r2, mae float64, records, outliers int) {
	if !ok {
		r.trainingRuns.WithLabelValues("failure").Inc()
		r.modelReady.Set(0)
		return
	}
	r.trainingRuns.WithLabelValues("success").Inc()
	r.trainingTime.Set(seconds)
	r.modelReady.Set(1)
	r.modelR2.Set(r2)
	r.modelMAE.Set(mae)
	r.modelRecords.Set(float64(records))
	r.outliers.Set(float64(outliers))
}

// RecordIngest counts consumed delivered-order events.
func (r *Recorder) RecordIngest(ok bool) {
	if ok {
		r.ordersIngest.WithLabelValues("stored").Inc()
		return
	}
	r.ordersIngest.WithLabelValues("rejected").Inc()
}
