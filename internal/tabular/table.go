package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BindingName is the SQL name under which the loaded table is exposed
// to generated snippets. It is the only relation in a snippet's scope.
const BindingName = "t"

// Kind classifies the values of a column. Inference picks the most
// specific kind that covers the column's non-empty cells.
type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
)

// Column is an ordered sequence of typed values. Cells hold string,
// float64, bool, time.Time or nil, matching Kind; a nil cell is a null.
type Column struct {
	Name    string
	Kind    Kind
	Cells   []any
	Profile ColumnProfile
}

// Table is the in-memory form of an uploaded spreadsheet. It is built
// once per upload and never mutated afterwards; a new upload replaces
// the session's table wholesale.
type Table struct {
	SourceName string
	Columns    []Column
	RowCount   int
	LoadedAt   time.Time
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

func (t *Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Row materializes row i across all columns. Callers own the slice.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for c, col := range t.Columns {
		if i < len(col.Cells) {
			row[c] = col.Cells[i]
		}
	}
	return row
}

// Preview returns up to n rows for display.
func (t *Table) Preview(n int) [][]any {
	if n > t.RowCount {
		n = t.RowCount
	}
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, t.Row(i))
	}
	return rows
}

// SampleValues returns up to n distinct non-null cell values of the
// column rendered as strings, in first-seen order.
func (c Column) SampleValues(n int) []string {
	seen := make(map[string]struct{}, n)
	samples := make([]string, 0, n)
	for _, cell := range c.Cells {
		if cell == nil {
			continue
		}
		s := FormatCell(cell)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		samples = append(samples, s)
		if len(samples) == n {
			break
		}
	}
	return samples
}

// FormatCell renders a cell value for prompts, previews and CSV export.
func FormatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sanitizeHeaders trims headers, fills in names for blank ones and
// deduplicates collisions so every column has a distinct non-empty name.
func sanitizeHeaders(raw []string) []string {
	names := make([]string, len(raw))
	used := make(map[string]int, len(raw))
	for i, header := range raw {
		name := strings.TrimSpace(header)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		if n, ok := used[key]; ok {
			used[key] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
			key = strings.ToLower(name)
		}
		used[key] = 1
		names[i] = name
	}
	return names
}
