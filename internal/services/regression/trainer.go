package regression

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/service"
)

// TrainerConfig controls the hold-out split and the boosting run.
type TrainerConfig struct {
	TestRatio float64
	Seed      int64
	MinRows   int
	Boosting  BoostingConfig
}

// Trainer shuffles with a fixed seed, holds out TestRatio of the rows, fits
// gradient boosting on the rest and scores r² and MAE on the hold-out.
type Trainer struct {
	cfg TrainerConfig
}

func NewTrainer(cfg TrainerConfig) *Trainer {
	if cfg.TestRatio <= 0 || cfg.TestRatio >= 1 {
		cfg.TestRatio = 0.2
	}
	if cfg.MinRows < 2 {
		cfg.MinRows = 2
	}
	return &Trainer{cfg: cfg}
}

func (t *Trainer) TrainAndEvaluate(ctx context.Context, ds models.Dataset) (service.TrainResult, error) {
	n := ds.Len()
	if n < t.cfg.MinRows {
		return service.TrainResult{}, fmt.Errorf("need at least %d rows to train, have %d", t.cfg.MinRows, n)
	}

	trainIdx, testIdx := Split(n, t.cfg.TestRatio, t.cfg.Seed)
	train, test := ds.Subset(trainIdx), ds.Subset(testIdx)

	model, err := FitGradientBoosting(ctx, train.Rows, train.Target, t.cfg.Boosting)
	if err != nil {
		return service.TrainResult{}, fmt.Errorf("fit: %w", err)
	}

	pred := make([]float64, test.Len())
	for i, row := range test.Rows {
		pred[i] = model.Predict(row)
	}

	return service.TrainResult{
		Model:    model,
		Features: append([]string(nil), ds.Features...),
		Metrics: models.ModelMetrics{
			R2:  R2(test.Target, pred),
			MAE: MAE(test.Target, pred),
		},
		Records: n,
	}, nil
}

// Split returns shuffled train and test indices. The test side has at least one row.
func Split(n int, testRatio float64, seed int64) ([]int, []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Round(float64(n) * testRatio))
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= n {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

// R2 is the coefficient of determination. A constant target yields 0.
func R2(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	mean := 0.0
	for _, y := range actual {
		mean += y
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i, y := range actual {
		ssRes += (y - pred[i]) * (y - pred[i])
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// MAE is the mean absolute error.
func MAE(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	sum := 0.0
	for i, y := range actual {
		sum += math.Abs(y - pred[i])
	}
	return sum / float64(len(actual))
}

var (
	_ service.Trainer   = (*Trainer)(nil)
	_ service.Regressor = (*GradientBoosting)(nil)
)
