package dataset

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// LoadXLSX extracts the first worksheet of an .xlsx workbook into a Table.
// The first row is treated as the header. Only inline values and shared
// strings are resolved; formula results use the cached value the writer
// stored in the cell.
func LoadXLSX(path string) (*Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()

	shared, err := readSharedStrings(&zr.Reader)
	if err != nil {
		return nil, err
	}

	sheet := firstWorksheet(&zr.Reader)
	if sheet == nil {
		return nil, fmt.Errorf("open xlsx: no worksheet found")
	}

	rc, err := sheet.Open()
	if err != nil {
		return nil, fmt.Errorf("open worksheet: %w", err)
	}
	defer rc.Close()

	grid, err := parseSheet(rc, shared)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, ErrEmptyTable
	}

	cols := grid[0]
	width := len(cols)
	rows := make([][]string, 0, len(grid)-1)
	index := make([]int, 0, len(grid)-1)
	for i, rec := range grid[1:] {
		row := make([]string, width)
		copy(row, rec)
		rows = append(rows, row)
		index = append(index, i)
	}
	return &Table{Columns: cols, Index: index, Rows: rows}, nil
}

func firstWorksheet(zr *zip.Reader) *zip.File {
	var sheets []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			sheets = append(sheets, f)
		}
	}
	if len(sheets) == 0 {
		return nil
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Name < sheets[j].Name })
	return sheets[0]
}

func readSharedStrings(zr *zip.Reader) ([]string, error) {
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open shared strings: %w", err)
		}
		defer rc.Close()

		var sst struct {
			SI []struct {
				T []string `xml:"t"`
				R []struct {
					T string `xml:"t"`
				} `xml:"r"`
			} `xml:"si"`
		}
		if err := xml.NewDecoder(rc).Decode(&sst); err != nil {
			return nil, fmt.Errorf("parse shared strings: %w", err)
		}

		out := make([]string, len(sst.SI))
		for i, si := range sst.SI {
			var b strings.Builder
			for _, t := range si.T {
				b.WriteString(t)
			}
			for _, r := range si.R {
				b.WriteString(r.T)
			}
			out[i] = b.String()
		}
		return out, nil
	}
	return nil, nil
}

type xlsxCell struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline struct {
		T string `xml:"t"`
	} `xml:"is"`
}

type xlsxRow struct {
	Cells []xlsxCell `xml:"c"`
}

func parseSheet(r io.Reader, shared []string) ([][]string, error) {
	var sheet struct {
		Rows []xlsxRow `xml:"sheetData>row"`
	}
	if err := xml.NewDecoder(r).Decode(&sheet); err != nil {
		return nil, fmt.Errorf("parse worksheet: %w", err)
	}

	grid := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		var cells []string
		for _, c := range row.Cells {
			col := columnNumber(c.Ref)
			for len(cells) < col {
				cells = append(cells, "")
			}
			cells = append(cells, cellValue(c, shared))
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func cellValue(c xlsxCell, shared []string) string {
	switch c.Type {
	case "s":
		i, err := strconv.Atoi(c.Value)
		if err != nil || i < 0 || i >= len(shared) {
			return ""
		}
		return shared[i]
	case "inlineStr":
		return c.Inline.T
	case "b":
		if c.Value == "1" {
			return "true"
		}
		return "false"
	default:
		return c.Value
	}
}

// columnNumber converts the column letters of a cell reference like "BC12"
// to a zero-based column position.
func columnNumber(ref string) int {
	n := 0
	for _, ch := range ref {
		if ch < 'A' || ch > 'Z' {
			break
		}
		n = n*26 + int(ch-'A') + 1
	}
	if n == 0 {
		return 0
	}
	return n - 1
}
