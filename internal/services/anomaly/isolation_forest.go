package anomaly

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/service"
)

const eulerGamma = 0.5772156649015329

// Config holds isolation forest parameters.
type Config struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
}

// IsolationForest scores rows by how quickly random axis-aligned splits
// isolate them and drops the most anomalous Contamination fraction.
// The target column takes part in scoring so that implausible durations are removed too.
type IsolationForest struct {
	cfg Config
}

func NewIsolationForest(cfg Config) *IsolationForest {
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.SampleSize <= 1 {
		cfg.SampleSize = 256
	}
	return &IsolationForest{cfg: cfg}
}

type itreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Size      int
	IsLeaf    bool
}

type itree struct {
	nodes []itreeNode
}

// Filter returns ds without its outliers and the number of rows removed.
func (f *IsolationForest) Filter(ds models.Dataset) (models.Dataset, int, error) {
	if len(ds.Rows) != len(ds.Target) {
		return ds, 0, errors.New("rows and target size mismatch")
	}
	n := ds.Len()
	if f.cfg.Contamination < 0 || f.cfg.Contamination >= 0.5 {
		return ds, 0, errors.New("contamination must be in [0, 0.5)")
	}
	drop := int(math.Floor(f.cfg.Contamination * float64(n)))
	if n < 2 || drop == 0 {
		return ds, 0, nil
	}

	points := make([][]float64, n)
	for i, row := range ds.Rows {
		p := make([]float64, len(row)+1)
		copy(p, row)
		p[len(row)] = ds.Target[i]
		points[i] = p
	}

	scores := f.Score(points)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	removed := make([]bool, n)
	for _, idx := range order[:drop] {
		removed[idx] = true
	}
	keep := make([]int, 0, n-drop)
	for i := 0; i < n; i++ {
		if !removed[i] {
			keep = append(keep, i)
		}
	}
	return ds.Subset(keep), drop, nil
}

// Score returns the anomaly score in (0, 1] for every point; higher is more anomalous.
func (f *IsolationForest) Score(points [][]float64) []float64 {
	n := len(points)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	psi := f.cfg.SampleSize
	if psi > n {
		psi = n
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))
	rng := rand.New(rand.NewSource(f.cfg.Seed))

	trees := make([]itree, f.cfg.Trees)
	for t := range trees {
		sample := rng.Perm(n)[:psi]
		trees[t] = buildTree(points, sample, limit, rng)
	}

	norm := averagePathLength(psi)
	for i, p := range points {
		total := 0.0
		for _, tr := range trees {
			total += tr.pathLength(p)
		}
		mean := total / float64(len(trees))
		if norm == 0 {
			scores[i] = 0.5
			continue
		}
		scores[i] = math.Pow(2, -mean/norm)
	}
	return scores
}

func buildTree(points [][]float64, sample []int, limit int, rng *rand.Rand) itree {
	t := itree{nodes: make([]itreeNode, 0, 2*len(sample))}
	t.grow(points, sample, 0, limit, rng)
	return t
}

// grow appends the subtree for idx and returns its root position.
func (t *itree) grow(points [][]float64, idx []int, depth, limit int, rng *rand.Rand) int {
	pos := len(t.nodes)
	t.nodes = append(t.nodes, itreeNode{Size: len(idx), IsLeaf: true, Left: -1, Right: -1})
	if depth >= limit || len(idx) <= 1 {
		return pos
	}

	dims := len(points[idx[0]])
	for _, feature := range rng.Perm(dims) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := points[i][feature]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi <= lo {
			continue
		}

		threshold := lo + rng.Float64()*(hi-lo)
		var left, right []int
		for _, i := range idx {
			if points[i][feature] < threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		l := t.grow(points, left, depth+1, limit, rng)
		r := t.grow(points, right, depth+1, limit, rng)
		t.nodes[pos] = itreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Size: len(idx)}
		return pos
	}
	return pos
}

func (t itree) pathLength(p []float64) float64 {
	idx, depth := 0, 0
	for {
		node := t.nodes[idx]
		if node.IsLeaf {
			return float64(depth) + averagePathLength(node.Size)
		}
		if p[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean unsuccessful-search depth of a BST with n keys.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

var _ service.OutlierFilter = (*IsolationForest)(nil)
