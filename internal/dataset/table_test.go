package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, csv string) *Table {
	t.Helper()
	tbl, err := LoadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func TestLoadCSV(t *testing.T) {
	tbl := mustLoad(t, "name,age\nalice,30\nbob,31\n")
	assert.Equal(t, []string{"name", "age"}, tbl.Columns)
	assert.Equal(t, [][]string{{"alice", "30"}, {"bob", "31"}}, tbl.Rows)
	assert.Equal(t, []int{0, 1}, tbl.Index)
}

func TestLoadCSV_PadsShortRows(t *testing.T) {
	tbl := mustLoad(t, "a,b,c\n1,2\n")
	assert.Equal(t, []string{"1", "2", ""}, tbl.Rows[0])
}

func TestLoadCSV_Empty(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestBasicClean(t *testing.T) {
	tbl := mustLoad(t, " name , age \nalice,30\nalice,30\n,\nbob,31\n")
	clean := BasicClean(tbl)

	assert.Equal(t, []string{"name", "age"}, clean.Columns, "column names trimmed")
	// One duplicate and one all-empty row dropped.
	assert.Equal(t, [][]string{{"alice", "30"}, {"bob", "31"}}, clean.Rows)
	// Original row ids survive the drops.
	assert.Equal(t, []int{0, 3}, clean.Index)
}

func TestBasicClean_RowCountReducedByExactlyDuplicatesAndEmpties(t *testing.T) {
	tbl := mustLoad(t, "a,b\n1,2\n1,2\n1,2\n,\n3,4\n")
	clean := BasicClean(tbl)
	// 5 raw rows, 2 duplicates + 1 empty dropped.
	assert.Equal(t, 2, Summarize(clean).Rows)
}

func TestSummarize(t *testing.T) {
	tbl := mustLoad(t, "a,b,c\n1,2,3\n")
	s := Summarize(tbl)
	assert.Equal(t, 1, s.Rows)
	assert.Equal(t, 3, s.Cols)
	assert.Equal(t, []string{"a", "b", "c"}, s.Columns)

	b, err := s.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"rows": 1`)
}

func TestNumericColumn(t *testing.T) {
	tbl := mustLoad(t, "age,city\n30,oslo\nx,bergen\n31,\n")

	vals, err := NumericColumn(tbl, "age")
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 31}, vals, "non-numeric cells skipped")

	_, err = NumericColumn(tbl, "missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = NumericColumn(tbl, "city")
	assert.ErrorIs(t, err, ErrNoNumericData)
}

func TestNumericMatrix(t *testing.T) {
	tbl := mustLoad(t, "name,age,score\nalice,30,1.5\nbob,,2.5\ncarol,32,3.5\n")

	cols, data := NumericMatrix(tbl)
	assert.Equal(t, []string{"age", "score"}, cols)
	require.Len(t, data, 3)
	assert.Equal(t, 30.0, data[0][0])
	assert.True(t, math.IsNaN(data[1][0]), "empty cell in numeric column becomes NaN")
	assert.Equal(t, 2.5, data[1][1])
}

func TestNumericMatrix_NoNumericColumns(t *testing.T) {
	tbl := mustLoad(t, "name,city\nalice,oslo\n")
	cols, data := NumericMatrix(tbl)
	assert.Nil(t, cols)
	assert.Nil(t, data)
}

func TestCoerceMatrix_SchemaDrift(t *testing.T) {
	tbl := mustLoad(t, "age,name\n30,alice\nx,bob\n")

	// Trained on [age, height]; height is missing from the upload.
	data := CoerceMatrix(tbl, []string{"age", "height"})
	require.Len(t, data, 2)
	assert.Equal(t, 30.0, data[0][0])
	assert.True(t, math.IsNaN(data[0][1]), "missing column becomes NaN")
	assert.True(t, math.IsNaN(data[1][0]), "non-numeric value becomes NaN")
}

func TestSaveHist(t *testing.T) {
	tbl := mustLoad(t, "age\n30\n31\n29\n32\n28\n99\n")
	path := filepath.Join(t.TempDir(), "sub", "hist.png")

	require.NoError(t, SaveHist(tbl, "age", path, 20))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), b[:4])
}

func TestSaveHist_Errors(t *testing.T) {
	tbl := mustLoad(t, "name\nalice\n")
	path := filepath.Join(t.TempDir(), "hist.png")
	assert.ErrorIs(t, SaveHist(tbl, "missing", path, 20), ErrColumnNotFound)
	assert.ErrorIs(t, SaveHist(tbl, "name", path, 20), ErrNoNumericData)
}

func TestRow(t *testing.T) {
	tbl := mustLoad(t, "a,b\n1,2\n")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, tbl.Row(0))
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.parquet")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedExt)

	_, err = Load(filepath.Join(dir, "noext"))
	assert.ErrorIs(t, err, ErrUnsupportedExt)
}
