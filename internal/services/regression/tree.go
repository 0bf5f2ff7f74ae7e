package regression

import (
	"math"
	"sort"
)

// treeNode is one slot of a flattened regression tree; children are indices
// into the same slice.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	IsLeaf    bool    `json:"is_leaf"`
}

type regressionTree struct {
	nodes []treeNode
}

func (t *regressionTree) predict(row []float64) float64 {
	idx := 0
	for {
		node := t.nodes[idx]
		if node.IsLeaf {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// binner maps raw feature values to histogram bins. bin(v) <= k iff v <= cuts[k].
type binner struct {
	cuts [][]float64
}

func newBinner(rows [][]float64, maxBins int) *binner {
	if len(rows) == 0 {
		return &binner{}
	}
	dims := len(rows[0])
	b := &binner{cuts: make([][]float64, dims)}
	values := make([]float64, len(rows))
	for f := 0; f < dims; f++ {
		for i, row := range rows {
			values[i] = row[f]
		}
		b.cuts[f] = quantileCuts(values, maxBins)
	}
	return b
}

// quantileCuts returns at most maxBins-1 strictly increasing cut points taken
// at evenly spaced quantiles of the distinct values.
func quantileCuts(values []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= 1 {
		return nil
	}

	if len(distinct) <= maxBins {
		// Every distinct value but the largest is its own cut.
		return distinct[:len(distinct)-1]
	}

	cuts := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		pos := k * len(distinct) / maxBins
		c := distinct[pos-1]
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	return cuts
}

func (b *binner) bin(feature int, v float64) int {
	return sort.SearchFloat64s(b.cuts[feature], v)
}

func (b *binner) binAll(rows [][]float64) [][]uint16 {
	out := make([][]uint16, len(rows))
	for i, row := range rows {
		br := make([]uint16, len(row))
		for f, v := range row {
			br[f] = uint16(b.bin(f, v))
		}
		out[i] = br
	}
	return out
}

type treeBuilder struct {
	binner   *binner
	bins     [][]uint16
	residual []float64
	maxDepth int
	minLeaf  int
	nodes    []treeNode
}

func (tb *treeBuilder) build(idx []int) regressionTree {
	tb.nodes = tb.nodes[:0]
	tb.grow(idx, 0)
	return regressionTree{nodes: append([]treeNode(nil), tb.nodes...)}
}

func (tb *treeBuilder) grow(idx []int, depth int) int {
	pos := len(tb.nodes)

	sum := 0.0
	for _, i := range idx {
		sum += tb.residual[i]
	}
	mean := sum / float64(len(idx))
	tb.nodes = append(tb.nodes, treeNode{Feature: -1, Left: -1, Right: -1, Value: mean, IsLeaf: true})

	if depth >= tb.maxDepth || len(idx) < 2*tb.minLeaf {
		return pos
	}

	feature, cut, ok := tb.bestSplit(idx, sum)
	if !ok {
		return pos
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if int(tb.bins[i][feature]) <= cut {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := tb.grow(left, depth+1)
	r := tb.grow(right, depth+1)
	tb.nodes[pos] = treeNode{
		Feature:   feature,
		Threshold: tb.binner.cuts[feature][cut],
		Left:      l,
		Right:     r,
		Value:     mean,
	}
	return pos
}

// bestSplit maximizes the variance reduction sL²/nL + sR²/nR - s²/n over
// every feature and cut.
func (tb *treeBuilder) bestSplit(idx []int, total float64) (int, int, bool) {
	n := float64(len(idx))
	parent := total * total / n
	bestGain := 1e-12
	bestFeature, bestCut := -1, -1

	for f, cuts := range tb.binner.cuts {
		if len(cuts) == 0 {
			continue
		}
		sums := make([]float64, len(cuts)+1)
		counts := make([]int, len(cuts)+1)
		for _, i := range idx {
			b := tb.bins[i][f]
			sums[b] += tb.residual[i]
			counts[b]++
		}

		sL, nL := 0.0, 0
		for k := 0; k < len(cuts); k++ {
			sL += sums[k]
			nL += counts[k]
			nR := len(idx) - nL
			if nL < tb.minLeaf {
				continue
			}
			if nR < tb.minLeaf {
				break
			}
			sR := total - sL
			gain := sL*sL/float64(nL) + sR*sR/float64(nR) - parent
			if gain > bestGain && !math.IsNaN(gain) {
				bestGain = gain
				bestFeature = f
				bestCut = k
			}
		}
	}
	return bestFeature, bestCut, bestFeature >= 0
}
