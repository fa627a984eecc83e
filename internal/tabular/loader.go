package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("tabular: unsupported file format")
	ErrEmptyFile         = errors.New("tabular: file has no data rows")
	ErrTooManyRows       = errors.New("tabular: too many rows")
	ErrTooManyColumns    = errors.New("tabular: too many columns")
	ErrFileTooLarge      = errors.New("tabular: file too large")
)

// Limits bound an upload. Zero values disable the corresponding check.
type Limits struct {
	MaxRows    int
	MaxColumns int
	MaxBytes   int64
}

// Load parses an uploaded spreadsheet into a Table. The format is
// chosen by the file extension (.xlsx or .csv). A failed load leaves
// no partial state behind; callers keep their previous table.
func Load(filename string, r io.Reader, limits Limits) (*Table, error) {
	data, err := readBounded(r, limits.MaxBytes)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readExcel(data)
	case ".csv":
		rows, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	return build(filepath.Base(filename), rows, limits)
}

func readBounded(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxBytes)
	}
	return data, nil
}

func readExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func build(sourceName string, rows [][]string, limits Limits) (*Table, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	headers := sanitizeHeaders(rows[0])
	dataRows := rows[1:]

	if limits.MaxColumns > 0 && len(headers) > limits.MaxColumns {
		return nil, fmt.Errorf("%w: %d columns, limit is %d", ErrTooManyColumns, len(headers), limits.MaxColumns)
	}
	if limits.MaxRows > 0 && len(dataRows) > limits.MaxRows {
		return nil, fmt.Errorf("%w: %d rows, limit is %d", ErrTooManyRows, len(dataRows), limits.MaxRows)
	}

	columns := make([]Column, len(headers))
	for c, name := range headers {
		raw := make([]string, len(dataRows))
		for r, row := range dataRows {
			if c < len(row) {
				raw[r] = strings.TrimSpace(row[c])
			}
		}
		kind := inferKind(raw)
		columns[c] = Column{
			Name:  name,
			Kind:  kind,
			Cells: parseCells(raw, kind),
		}
	}

	table := &Table{
		SourceName: sourceName,
		Columns:    columns,
		RowCount:   len(dataRows),
		LoadedAt:   time.Now().UTC(),
	}
	if err := Profile(table); err != nil {
		return nil, fmt.Errorf("profile columns: %w", err)
	}
	return table, nil
}
