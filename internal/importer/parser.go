// Package importer turns raw tabular files into engine-ready records:
// parse, score column mappings against the target schema, screen for
// duplicates, optionally resolve references, then hand the batch to the
// engine for chunked admission.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"bulkops/pkg/errors"
)

// Table is the parsed form of one tabular input: a header row plus data
// rows, all values still raw strings.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Parse reads a tabular file, dispatching on the filename extension.
// Supported formats are .csv and .xlsx.
func Parse(filename string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(r)
	case ".xlsx":
		return parseXLSX(r)
	default:
		return nil, errors.ErrValidation.WithMessage(fmt.Sprintf("unsupported import format: %s", filepath.Ext(filename)))
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseCSV(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSystem)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ErrValidation.WithMessage("malformed csv input").WithCause(err)
	}
	return tableFromRows(rows)
}

func parseXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.ErrValidation.WithMessage("malformed xlsx input").WithCause(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ErrValidation.WithMessage("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSystem)
	}
	return tableFromRows(rows)
}

func tableFromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.ErrValidation.WithMessage("input has no header row")
	}

	columns := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		columns[i] = strings.TrimSpace(name)
	}

	table := &Table{Columns: columns}
	for _, row := range rows[1:] {
		if rowIsEmpty(row) {
			continue
		}
		// Pad short rows so every row indexes cleanly against the header.
		if len(row) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, row)
			row = padded
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
