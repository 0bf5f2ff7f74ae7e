package regression

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
)

// linearDataset builds y = 2 + 0.01*x0 + 3*x1 with small noise.
func linearDataset(n int, seed int64) models.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := models.Dataset{Features: []string{"distance_km", "is_weekend_order"}}
	for i := 0; i < n; i++ {
		x0 := rng.Float64() * 2000
		x1 := float64(rng.Intn(2))
		ds.Rows = append(ds.Rows, []float64{x0, x1})
		ds.Target = append(ds.Target, 2+0.01*x0+3*x1+rng.NormFloat64()*0.3)
	}
	return ds
}

func TestTrainerFitsSignal(t *testing.T) {
	tr := NewTrainer(TrainerConfig{
		TestRatio: 0.2,
		Seed:      42,
		MinRows:   50,
		Boosting:  BoostingConfig{Rounds: 150, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 5, Bins: 32},
	})

	res, err := tr.TrainAndEvaluate(context.Background(), linearDataset(1000, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Metrics.R2 < 0.9 {
		t.Fatalf("expected r2 > 0.9, got %v", res.Metrics.R2)
	}
	if res.Metrics.MAE > 1 {
		t.Fatalf("expected mae < 1 day, got %v", res.Metrics.MAE)
	}
	if res.Records != 1000 || len(res.Features) != 2 {
		t.Fatalf("unexpected result metadata %+v", res)
	}

	row := []float64{1000, 1}
	if a, b := res.Model.Predict(row), res.Model.Predict(row); a != b {
		t.Fatalf("prediction should be deterministic")
	}
}

func TestTrainerDeterministic(t *testing.T) {
	cfg := TrainerConfig{Seed: 9, MinRows: 10, Boosting: BoostingConfig{Rounds: 30, MinSamplesLeaf: 3}}
	ds := linearDataset(300, 2)

	a, err := NewTrainer(cfg).TrainAndEvaluate(context.Background(), ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := NewTrainer(cfg).TrainAndEvaluate(context.Background(), ds)
	if a.Metrics != b.Metrics {
		t.Fatalf("metrics differ: %+v vs %+v", a.Metrics, b.Metrics)
	}
}

func TestTrainerRejectsTinyDataset(t *testing.T) {
	_, err := NewTrainer(TrainerConfig{MinRows: 50}).TrainAndEvaluate(context.Background(), linearDataset(10, 3))
	if err == nil {
		t.Fatalf("expected error for too few rows")
	}
}

func TestFitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := linearDataset(100, 4)
	if _, err := FitGradientBoosting(ctx, ds.Rows, ds.Target, BoostingConfig{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestConstantTargetStopsEarly(t *testing.T) {
	rows := [][]float64{{1}, {2}, {3}, {4}}
	m, err := FitGradientBoosting(context.Background(), rows, []float64{5, 5, 5, 5}, BoostingConfig{MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Trees() != 0 || m.Predict([]float64{10}) != 5 {
		t.Fatalf("constant target should produce the mean and no trees")
	}
}

func TestQuantileCuts(t *testing.T) {
	cuts := quantileCuts([]float64{3, 1, 2, 2, 1}, 10)
	if len(cuts) != 2 || cuts[0] != 1 || cuts[1] != 2 {
		t.Fatalf("unexpected cuts %v", cuts)
	}
	if quantileCuts([]float64{7, 7, 7}, 4) != nil {
		t.Fatalf("constant column should have no cuts")
	}

	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	cuts = quantileCuts(values, 4)
	if len(cuts) != 3 {
		t.Fatalf("expected 3 cuts, got %v", cuts)
	}
	b := &binner{cuts: [][]float64{cuts}}
	if b.bin(0, cuts[1]) != 1 || b.bin(0, cuts[1]+0.5) != 2 {
		t.Fatalf("bin boundaries should match thresholds")
	}
}

func TestMetrics(t *testing.T) {
	actual := []float64{1, 2, 3, 4}
	if R2(actual, actual) != 1 || MAE(actual, actual) != 0 {
		t.Fatalf("perfect prediction metrics wrong")
	}
	if got := MAE(actual, []float64{2, 3, 4, 5}); got != 1 {
		t.Fatalf("unexpected mae %v", got)
	}
	if R2([]float64{3, 3}, []float64{1, 5}) != 0 {
		t.Fatalf("constant target should give r2 0")
	}
	if r := R2(actual, []float64{2.5, 2.5, 2.5, 2.5}); math.Abs(r) > 1e-12 {
		t.Fatalf("mean predictor should give r2 0, got %v", r)
	}
}

func TestSplit(t *testing.T) {
	train, test := Split(10, 0.2, 1)
	if len(train) != 8 || len(test) != 2 {
		t.Fatalf("unexpected split %d/%d", len(train), len(test))
	}
	seen := map[int]bool{}
	for _, i := range append(train, test...) {
		if seen[i] {
			t.Fatalf("index %d used twice", i)
		}
		seen[i] = true
	}
}
