package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderTraining(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordTraining(false, 0, 0, 0, 0, 0)
	if got := testutil.ToFloat64(r.modelReady); got != 0 {
		t.Fatalf("expected not ready, got %v", got)
	}

	r.RecordTraining(true, 2.5, 0.61, 3.2, 900, 18)
	if got := testutil.ToFloat64(r.modelReady); got != 1 {
		t.Fatalf("expected ready, got %v", got)
	}
	if got := testutil.ToFloat64(r.modelR2); got != 0.61 {
		t.Fatalf("unexpected r2 gauge %v", got)
	}
	if got := testutil.ToFloat64(r.trainingRuns.WithLabelValues("failure")); got != 1 {
		t.Fatalf("unexpected failure count %v", got)
	}
}

func TestRecorderPredictions(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.RecordPrediction(false)
	r.RecordPrediction(true)
	r.RecordPrediction(true)

	if got := testutil.ToFloat64(r.predictions.WithLabelValues("cache")); got != 2 {
		t.Fatalf("unexpected cache count %v", got)
	}
	if got := testutil.ToFloat64(r.predictions.WithLabelValues("model")); got != 1 {
		t.Fatalf("unexpected model count %v", got)
	}
}
