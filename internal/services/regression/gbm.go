package regression

import (
	"context"
	"errors"
)

// BoostingConfig holds gradient boosting parameters.
type BoostingConfig struct {
	Rounds         int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	Bins           int
}

func (c BoostingConfig) withDefaults() BoostingConfig {
	if c.Rounds <= 0 {
		c.Rounds = 200
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 4
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = 20
	}
	if c.Bins < 2 {
		c.Bins = 64
	}
	if c.Bins > 1<<16 {
		c.Bins = 1 << 16
	}
	return c
}

// GradientBoosting is an ensemble of shallow regression trees fit to squared-loss residuals.
// It is immutable once fitted.
type GradientBoosting struct {
	base  float64
	rate  float64
	trees []regressionTree
}

// FitGradientBoosting fits a model on rows and target.
func FitGradientBoosting(ctx context.Context, rows [][]float64, target []float64, cfg BoostingConfig) (*GradientBoosting, error) {
	if len(rows) == 0 {
		return nil, errors.New("no training rows")
	}
	if len(rows) != len(target) {
		return nil, errors.New("rows and target size mismatch")
	}
	cfg = cfg.withDefaults()

	base := 0.0
	for _, y := range target {
		base += y
	}
	base /= float64(len(target))

	bn := newBinner(rows, cfg.Bins)
	tb := &treeBuilder{
		binner:   bn,
		bins:     bn.binAll(rows),
		residual: make([]float64, len(rows)),
		maxDepth: cfg.MaxDepth,
		minLeaf:  cfg.MinSamplesLeaf,
	}

	pred := make([]float64, len(rows))
	for i := range pred {
		pred[i] = base
	}
	all := make([]int, len(rows))
	for i := range all {
		all[i] = i
	}

	m := &GradientBoosting{base: base, rate: cfg.LearningRate}
	for round := 0; round < cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, y := range target {
			tb.residual[i] = y - pred[i]
		}
		tree := tb.build(all)
		if len(tree.nodes) == 1 {
			// Nothing left to split on.
			break
		}
		for i, row := range rows {
			pred[i] += cfg.LearningRate * tree.predict(row)
		}
		m.trees = append(m.trees, tree)
	}
	return m, nil
}

// Predict returns the model output for one row in training feature order.
func (m *GradientBoosting) Predict(row []float64) float64 {
	out := m.base
	for i := range m.trees {
		out += m.rate * m.trees[i].predict(row)
	}
	return out
}

// Trees returns the number of fitted trees.
func (m *GradientBoosting) Trees() int {
	return len(m.trees)
}
