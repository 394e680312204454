// Package dataset loads tabular files and computes the lightweight summary
// artifacts the analysis pipeline consumes. It is the in-repo implementation
// of the summarizer/histogram collaborator: pure functions over an in-memory
// table, no knowledge of jobs or storage.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	ErrEmptyTable     = errors.New("table has no rows")
	ErrColumnNotFound = errors.New("column not found")
	ErrNoNumericData  = errors.New("column has no numeric data")
	ErrUnsupportedExt = errors.New("unsupported file extension")
)

// Table is a rectangular block of string cells. Index carries the original
// zero-based row ids so cleaning can drop rows without losing row identity;
// downstream anomaly indices refer to these ids, not to positions.
type Table struct {
	Columns []string
	Index   []int
	Rows    [][]string
}

// Summary is the statistical overview of a cleaned table.
type Summary struct {
	Rows    int      `json:"rows"`
	Cols    int      `json:"cols"`
	Columns []string `json:"columns"`
}

// JSON renders the summary as indented JSON.
func (s Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// LoadCSV reads a header row plus data rows. Short records are padded so the
// table stays rectangular.
func LoadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	cols := records[0]
	rows := make([][]string, 0, len(records)-1)
	index := make([]int, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := make([]string, len(cols))
		copy(row, rec)
		rows = append(rows, row)
		index = append(index, i)
	}
	return &Table{Columns: cols, Index: index, Rows: rows}, nil
}

// Load reads path, dispatching on its extension (.csv or .xlsx).
func Load(path string) (*Table, error) {
	dot := strings.LastIndex(path, ".")
	if dot < 0 {
		return nil, fmt.Errorf("%w: no extension", ErrUnsupportedExt)
	}
	switch ext := strings.ToLower(path[dot:]); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		return LoadCSV(f)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExt, ext)
	}
}

// BasicClean trims column names, drops rows whose cells are all empty, and
// drops duplicate rows keeping the first occurrence. Original row ids are
// preserved in Index.
func BasicClean(t *Table) *Table {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = strings.TrimSpace(c)
	}

	seen := make(map[string]bool, len(t.Rows))
	rows := make([][]string, 0, len(t.Rows))
	index := make([]int, 0, len(t.Rows))
	for i, row := range t.Rows {
		if allEmpty(row) {
			continue
		}
		key := strings.Join(row, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
		index = append(index, t.Index[i])
	}
	return &Table{Columns: cols, Index: index, Rows: rows}
}

// Summarize reports row/column counts and column names.
func Summarize(t *Table) Summary {
	return Summary{
		Rows:    len(t.Rows),
		Cols:    len(t.Columns),
		Columns: append([]string(nil), t.Columns...),
	}
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Row returns the named-cell view of row position i.
func (t *Table) Row(i int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for j, c := range t.Columns {
		if j < len(t.Rows[i]) {
			m[c] = t.Rows[i][j]
		}
	}
	return m
}

// NumericColumn coerces the named column to float64, skipping cells that do
// not parse. Fails when the column is absent or yields no numeric values.
func NumericColumn(t *Table, name string) ([]float64, error) {
	ci := t.ColumnIndex(name)
	if ci < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	vals := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if v, ok := parseCell(row[ci]); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoNumericData, name)
	}
	return vals, nil
}

// NumericMatrix selects the columns where every non-empty cell parses as a
// number and returns them as a row-major matrix; empty cells become NaN.
// Column order follows the table.
func NumericMatrix(t *Table) ([]string, [][]float64) {
	var numericIdx []int
	var names []string
	for j := range t.Columns {
		if isNumericColumn(t, j) {
			numericIdx = append(numericIdx, j)
			names = append(names, t.Columns[j])
		}
	}
	if len(numericIdx) == 0 {
		return nil, nil
	}

	data := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		vec := make([]float64, len(numericIdx))
		for k, j := range numericIdx {
			if v, ok := parseCell(row[j]); ok {
				vec[k] = v
			} else {
				vec[k] = math.NaN()
			}
		}
		data[i] = vec
	}
	return names, data
}

// CoerceMatrix reindexes the table to exactly the given columns (missing
// columns become all-NaN) and coerces every cell, non-numeric becoming NaN.
// Used for inference against a trained feature list that may not match the
// incoming schema.
func CoerceMatrix(t *Table, columns []string) [][]float64 {
	pos := make([]int, len(columns))
	for k, name := range columns {
		pos[k] = t.ColumnIndex(name)
	}

	data := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		vec := make([]float64, len(columns))
		for k, j := range pos {
			if j >= 0 && j < len(row) {
				if v, ok := parseCell(row[j]); ok {
					vec[k] = v
					continue
				}
			}
			vec[k] = math.NaN()
		}
		data[i] = vec
	}
	return data
}

func isNumericColumn(t *Table, j int) bool {
	nonEmpty := 0
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
	}
	return nonEmpty > 0
}

func parseCell(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func allEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
