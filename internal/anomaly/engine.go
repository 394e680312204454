package anomaly

import (
	"sort"

	"github.com/hanzhu/tablab/internal/dataset"
)

const (
	// minRows is the smallest table a density model can sensibly be fit on.
	minRows = 5

	DefaultTopK          = 5
	DefaultContamination = 0.05
	DefaultSeed          = 42
)

// Result holds the top-k anomalous rows of one table. Indices are original
// row ids (they may skip over rows dropped during cleaning) and Scores is the
// parallel score sequence, sorted descending. Scores are raw rescaled
// decision values, never renormalized.
type Result struct {
	Indices []int     `json:"indices"`
	Scores  []float64 `json:"scores"`
}

// Score fits an isolation forest on the table's numeric columns and returns
// the top-k anomalies. Returns false when the table has no numeric columns
// or fewer than five rows. topK is clamped to [1, rows]; ties keep their
// original encounter order.
func Score(t *dataset.Table, topK int, contamination float64, seed int64) (*Result, bool) {
	_, data := dataset.NumericMatrix(t)
	if data == nil || len(t.Rows) < minRows {
		return nil, false
	}
	_ = contamination // only shifts the decision threshold, never the ranking

	f := Fit(data, DefaultTrees, seed)
	return rank(f.ScoreAll(data), t.Index, topK), true
}

// ScoreWithBundle scores the table against a previously trained forest,
// reindexing to the training feature columns. Missing columns become all-NaN
// and non-numeric cells become NaN, so schema drift degrades scores instead
// of failing. Returns false only for zero feature columns or zero rows.
func ScoreWithBundle(t *dataset.Table, f *Forest, featureColumns []string, topK int) (*Result, bool) {
	if len(featureColumns) == 0 || len(t.Rows) == 0 {
		return nil, false
	}
	data := dataset.CoerceMatrix(t, featureColumns)
	return rank(f.ScoreAll(data), t.Index, topK), true
}

func rank(scores []float64, index []int, topK int) *Result {
	n := len(scores)
	if topK < 1 {
		topK = 1
	}
	if topK > n {
		topK = n
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	res := &Result{
		Indices: make([]int, topK),
		Scores:  make([]float64, topK),
	}
	for i := 0; i < topK; i++ {
		res.Indices[i] = index[order[i]]
		res.Scores[i] = scores[order[i]]
	}
	return res
}
