package anomaly

import (
	"math"
	"strings"
	"testing"

	"github.com/hanzhu/tablab/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableFromCSV(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.LoadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

const agesCSV = "age\n30\n31\n29\n32\n28\n99\n"

func TestScore_FindsObviousOutlier(t *testing.T) {
	tbl := tableFromCSV(t, agesCSV)

	res, ok := Score(tbl, 2, 0.2, DefaultSeed)
	require.True(t, ok)
	require.Len(t, res.Indices, 2)
	require.Len(t, res.Scores, 2)

	// Row 5 holds age 99, far outside the 28-32 cluster.
	assert.Contains(t, res.Indices, 5)
}

func TestScore_LengthsEqualAndBoundedByTopK(t *testing.T) {
	tbl := tableFromCSV(t, "v\n1\n2\n3\n4\n5\n6\n7\n")

	for _, topK := range []int{1, 3, 7, 50} {
		res, ok := Score(tbl, topK, DefaultContamination, DefaultSeed)
		require.True(t, ok)
		assert.Equal(t, len(res.Indices), len(res.Scores))
		assert.LessOrEqual(t, len(res.Indices), topK)
		assert.LessOrEqual(t, len(res.Indices), 7, "clamped to row count")
	}
}

func TestScore_TopKClampedToAtLeastOne(t *testing.T) {
	tbl := tableFromCSV(t, agesCSV)
	res, ok := Score(tbl, 0, DefaultContamination, DefaultSeed)
	require.True(t, ok)
	assert.Len(t, res.Indices, 1)
}

func TestScore_SortedNonIncreasing(t *testing.T) {
	tbl := tableFromCSV(t, agesCSV)
	res, ok := Score(tbl, 6, DefaultContamination, DefaultSeed)
	require.True(t, ok)
	for i := 1; i < len(res.Scores); i++ {
		assert.GreaterOrEqual(t, res.Scores[i-1], res.Scores[i])
	}
}

func TestScore_TooFewRows(t *testing.T) {
	tbl := tableFromCSV(t, "v\n1\n2\n3\n4\n")
	_, ok := Score(tbl, 5, DefaultContamination, DefaultSeed)
	assert.False(t, ok)
}

func TestScore_NoNumericColumns(t *testing.T) {
	tbl := tableFromCSV(t, "name\na\nb\nc\nd\ne\nf\n")
	_, ok := Score(tbl, 5, DefaultContamination, DefaultSeed)
	assert.False(t, ok)
}

func TestScore_Deterministic(t *testing.T) {
	tbl := tableFromCSV(t, agesCSV)
	a, ok := Score(tbl, 3, DefaultContamination, 7)
	require.True(t, ok)
	b, ok := Score(tbl, 3, DefaultContamination, 7)
	require.True(t, ok)
	assert.Equal(t, a.Indices, b.Indices)
	assert.Equal(t, a.Scores, b.Scores)
}

func TestScore_IndicesAreOriginalRowIDs(t *testing.T) {
	// Duplicate and empty rows get dropped by cleaning; surviving ids skip.
	tbl := dataset.BasicClean(tableFromCSV(t, "age\n30\n30\n\n31\n29\n32\n28\n99\n"))

	res, ok := Score(tbl, 1, 0.2, DefaultSeed)
	require.True(t, ok)
	assert.Equal(t, []int{7}, res.Indices, "outlier keeps its pre-clean row id")
}

func TestScoreWithBundle_SchemaDrift(t *testing.T) {
	train := tableFromCSV(t, "age,height\n30,170\n31,171\n29,169\n32,172\n28,168\n99,240\n")
	_, data := dataset.NumericMatrix(train)
	f := Fit(data, DefaultTrees, DefaultSeed)

	// Upload is missing the height column entirely.
	drifted := tableFromCSV(t, "age,city\n30,oslo\n99,bergen\n")
	res, ok := ScoreWithBundle(drifted, f, []string{"age", "height"}, 2)
	require.True(t, ok)
	assert.Len(t, res.Indices, 2)
	assert.Len(t, res.Scores, 2)
}

func TestScoreWithBundle_EmptyInputs(t *testing.T) {
	tbl := tableFromCSV(t, agesCSV)
	_, data := dataset.NumericMatrix(tbl)
	f := Fit(data, DefaultTrees, DefaultSeed)

	_, ok := ScoreWithBundle(tbl, f, nil, 5)
	assert.False(t, ok, "zero feature columns")

	empty := &dataset.Table{Columns: []string{"age"}}
	_, ok = ScoreWithBundle(empty, f, []string{"age"}, 5)
	assert.False(t, ok, "zero rows")
}

func TestScoreWithBundle_WorksWithFewerThanFiveRows(t *testing.T) {
	train := tableFromCSV(t, agesCSV)
	_, data := dataset.NumericMatrix(train)
	f := Fit(data, DefaultTrees, DefaultSeed)

	// Inference tolerates tiny tables; only ad-hoc fitting requires 5 rows.
	tiny := tableFromCSV(t, "age\n30\n99\n")
	res, ok := ScoreWithBundle(tiny, f, []string{"age"}, 5)
	require.True(t, ok)
	assert.Len(t, res.Indices, 2)
}

func TestRank_TiesPreserveEncounterOrder(t *testing.T) {
	res := rank([]float64{0.5, 0.9, 0.5, 0.9}, []int{10, 11, 12, 13}, 4)
	assert.Equal(t, []int{11, 13, 10, 12}, res.Indices)
}

func TestForest_ScoresOutlierHigher(t *testing.T) {
	data := [][]float64{{30}, {31}, {29}, {32}, {28}, {99}}
	f := Fit(data, DefaultTrees, DefaultSeed)
	scores := f.ScoreAll(data)

	for i := 0; i < 5; i++ {
		assert.Greater(t, scores[5], scores[i], "outlier must outscore inliers")
	}
	for _, s := range scores {
		assert.False(t, math.IsNaN(s))
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestForest_NaNRowsScoreable(t *testing.T) {
	data := [][]float64{{30, 1}, {31, 2}, {29, 1}, {32, 2}, {28, 1}, {99, 9}}
	f := Fit(data, DefaultTrees, DefaultSeed)

	s := f.Score([]float64{math.NaN(), math.NaN()})
	assert.False(t, math.IsNaN(s))
}

func TestQuantile(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	assert.InDelta(t, 0.5, Quantile(scores, 1.0), 1e-9)
	assert.InDelta(t, 0.1, Quantile(scores, 0.0), 1e-9)
	assert.InDelta(t, 0.3, Quantile(scores, 0.5), 1e-9)
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}
