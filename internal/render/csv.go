package render

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV streams a table result as CSV, header first. Only table
// results export; other kinds have nothing tabular to offer.
func WriteCSV(w io.Writer, table *TableResult) error {
	if table == nil {
		return fmt.Errorf("%w: no table to export", ErrUnrenderable)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
