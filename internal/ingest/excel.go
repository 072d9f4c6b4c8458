// Package ingest turns an uploaded spreadsheet into typed configuration rows.
// It is the decode boundary: file-format and per-row shape problems are
// rejected here so that only well-formed rows reach the model loader.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oremia/risk-matrix/internal/matrix/service"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFile is returned before any parsing when the filename
	// extension is not a supported workbook format.
	ErrUnsupportedFile = errors.New("unsupported file format, upload a .xlsx workbook")

	// ErrMissingColumns is returned when the header row lacks one of the
	// required columns 类型, 名称, 数值.
	ErrMissingColumns = errors.New("workbook must contain the header columns 类型, 名称, 数值")

	// ErrMalformedRow is returned when a data row has a blank required field
	// or a non-integer 数值. The whole load is aborted.
	ErrMalformedRow = errors.New("malformed configuration row")
)

const (
	colType  = "类型"
	colName  = "名称"
	colValue = "数值"
)

// supportedExtensions are the zip-based workbook formats excelize can read.
// Legacy .xls is rejected up front: the binary format was never actually
// parseable in this pipeline.
var supportedExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
}

// ParseWorkbook reads the first sheet of the workbook in data and returns its
// typed rows in sheet order. filename is used only for the extension check.
func ParseWorkbook(filename string, data []byte) ([]service.Row, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMissingColumns)
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrMissingColumns, sheet)
	}

	idx, err := headerIndex(cells[0])
	if err != nil {
		return nil, err
	}

	rows := make([]service.Row, 0, len(cells)-1)
	for i, raw := range cells[1:] {
		rowType := cellAt(raw, idx[colType])
		name := cellAt(raw, idx[colName])
		value := cellAt(raw, idx[colValue])

		if rowType == "" && name == "" && value == "" {
			continue // trailing blank row
		}
		if rowType == "" || name == "" || value == "" {
			return nil, fmt.Errorf("%w: row %d is missing a required field", ErrMalformedRow, i+2)
		}

		n, err := parseIntCell(value)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %s is not an integer: %q", ErrMalformedRow, i+2, colValue, value)
		}

		rows = append(rows, service.Row{Type: rowType, Name: name, Value: n})
	}

	return rows, nil
}

// headerIndex locates the three required columns in the header row. Column
// order is free; extra columns are ignored.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, 3)
	for i, cell := range header {
		switch strings.TrimSpace(cell) {
		case colType, colName, colValue:
			idx[strings.TrimSpace(cell)] = i
		}
	}
	for _, col := range []string{colType, colName, colValue} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrMissingColumns, col)
		}
	}
	return idx, nil
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseIntCell accepts plain integers plus the integral floats spreadsheet
// tools like to emit for numeric cells ("3.0").
func parseIntCell(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}
