package dataset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestXLSX builds a minimal workbook with one sheet:
//
//	name  | age
//	alice | 30
//	bob   | 31
func writeTestXLSX(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)

	sst := `<?xml version="1.0"?>
<sst count="4" uniqueCount="4">
  <si><t>name</t></si>
  <si><t>age</t></si>
  <si><t>alice</t></si>
  <si><t>bob</t></si>
</sst>`
	sheet := `<?xml version="1.0"?>
<worksheet>
  <sheetData>
    <row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
    <row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>30</v></c></row>
    <row r="3"><c r="A3" t="s"><v>3</v></c><c r="B3"><v>31</v></c></row>
  </sheetData>
</worksheet>`

	for name, body := range map[string]string{
		"xl/sharedStrings.xml":    sst,
		"xl/worksheets/sheet1.xml": sheet,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestLoadXLSX(t *testing.T) {
	tbl, err := LoadXLSX(writeTestXLSX(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, tbl.Columns)
	assert.Equal(t, [][]string{{"alice", "30"}, {"bob", "31"}}, tbl.Rows)
	assert.Equal(t, []int{0, 1}, tbl.Index)
}

func TestLoadXLSX_ViaLoad(t *testing.T) {
	tbl, err := Load(writeTestXLSX(t))
	require.NoError(t, err)
	assert.Equal(t, 2, Summarize(tbl).Rows)
}

func TestLoadXLSX_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := LoadXLSX(path)
	assert.Error(t, err)
}

func TestColumnNumber(t *testing.T) {
	assert.Equal(t, 0, columnNumber("A1"))
	assert.Equal(t, 1, columnNumber("B12"))
	assert.Equal(t, 26, columnNumber("AA3"))
	assert.Equal(t, 0, columnNumber(""))
}
