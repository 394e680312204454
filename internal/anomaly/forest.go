// Package anomaly fits and applies isolation forests to numeric tables.
//
// Scores follow the "larger = more anomalous" convention: a row's score is
// 2^(-E[h(x)]/c(ψ)) where h is the isolation path length and ψ the subsample
// size. This equals the negated normality score of the reference
// implementation, so consumers can sort descending without re-signing.
package anomaly

import (
	"math"
	"math/rand"
	"sort"
)

const (
	// DefaultTrees matches the ad-hoc scoring configuration.
	DefaultTrees = 200
	// TrainTrees is used by the offline training command.
	TrainTrees = 300

	maxSubsample = 256
)

// Forest is a trained isolation forest. All fields are exported so bundles
// can be round-tripped through encoding/gob.
type Forest struct {
	Trees         []*Node
	SubsampleSize int
	NumFeatures   int
	Seed          int64
}

// Node is one tree node. Leaf nodes have nil children and record the number
// of training rows that reached them.
type Node struct {
	Feature int
	Split   float64
	Left    *Node
	Right   *Node
	Size    int
}

// Fit trains numTrees isolation trees on the row-major matrix data. The
// random source is seeded, so identical inputs and seed produce an identical
// forest. NaN cells are tolerated: they always route to the left child.
func Fit(data [][]float64, numTrees int, seed int64) *Forest {
	rng := rand.New(rand.NewSource(seed))

	psi := len(data)
	if psi > maxSubsample {
		psi = maxSubsample
	}
	depthLimit := int(math.Ceil(math.Log2(float64(psi) + 1)))

	f := &Forest{
		Trees:         make([]*Node, numTrees),
		SubsampleSize: psi,
		NumFeatures:   len(data[0]),
		Seed:          seed,
	}
	for i := range f.Trees {
		sample := make([][]float64, psi)
		for j, k := range rng.Perm(len(data))[:psi] {
			sample[j] = data[k]
		}
		f.Trees[i] = buildTree(sample, 0, depthLimit, rng)
	}
	return f
}

func buildTree(rows [][]float64, depth, limit int, rng *rand.Rand) *Node {
	if depth >= limit || len(rows) <= 1 {
		return &Node{Feature: -1, Size: len(rows)}
	}

	feature, lo, hi, ok := pickSplitFeature(rows, rng)
	if !ok {
		// Every feature is constant or missing; the rows are inseparable.
		return &Node{Feature: -1, Size: len(rows)}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range rows {
		if goesLeft(row[feature], split) {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &Node{Feature: -1, Size: len(rows)}
	}

	return &Node{
		Feature: feature,
		Split:   split,
		Left:    buildTree(left, depth+1, limit, rng),
		Right:   buildTree(right, depth+1, limit, rng),
	}
}

// pickSplitFeature chooses a random feature whose observed (non-NaN) values
// actually vary, returning its range.
func pickSplitFeature(rows [][]float64, rng *rand.Rand) (feature int, lo, hi float64, ok bool) {
	numFeatures := len(rows[0])
	for _, j := range rng.Perm(numFeatures) {
		lo, hi = featureRange(rows, j)
		if lo < hi {
			return j, lo, hi, true
		}
	}
	return 0, 0, 0, false
}

func featureRange(rows [][]float64, j int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		v := row[j]
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

// NaN values follow the left child, deterministically.
func goesLeft(v, split float64) bool {
	return math.IsNaN(v) || v < split
}

// Score returns the anomaly score of one row; larger means more anomalous.
func (f *Forest) Score(row []float64) float64 {
	var total float64
	for _, t := range f.Trees {
		total += pathLength(t, row, 0)
	}
	avg := total / float64(len(f.Trees))
	return math.Pow(2, -avg/avgPathLength(f.SubsampleSize))
}

// ScoreAll scores every row of the matrix.
func (f *Forest) ScoreAll(data [][]float64) []float64 {
	out := make([]float64, len(data))
	for i, row := range data {
		out[i] = f.Score(row)
	}
	return out
}

func pathLength(n *Node, row []float64, depth int) float64 {
	if n.Left == nil {
		return float64(depth) + avgPathLength(n.Size)
	}
	if goesLeft(row[n.Feature], n.Split) {
		return pathLength(n.Left, row, depth+1)
	}
	return pathLength(n.Right, row, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search among n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}

// Quantile returns the q-th quantile (0..1) of scores, used to derive the
// decision threshold from a contamination fraction at train time.
func Quantile(scores []float64, q float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	i := int(pos)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i]*(1-frac) + sorted[i+1]*frac
}
