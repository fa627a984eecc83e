package tabular

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

// EncodeTableToParquet serializes the table into a single Parquet
// object. Column kinds map to DOUBLE, BOOLEAN, TIMESTAMP(ms) and UTF8;
// every column is optional so null cells survive the round trip. The
// resulting bytes are what query executions are rebuilt from, so the
// encoding must stay loss-free for typed cells.
func EncodeTableToParquet(t *Table) ([]byte, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, fmt.Errorf("table with at least one column is required")
	}

	schema := parquetSchema(t)
	rows := make([]map[string]any, t.RowCount)
	for i := 0; i < t.RowCount; i++ {
		row := make(map[string]any, len(t.Columns))
		for _, col := range t.Columns {
			if i >= len(col.Cells) || col.Cells[i] == nil {
				continue
			}
			switch v := col.Cells[i].(type) {
			case time.Time:
				row[col.Name] = v.UnixMilli()
			default:
				row[col.Name] = v
			}
		}
		rows[i] = row
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func parquetSchema(t *Table) *parquet.Schema {
	group := parquet.Group{}
	for _, col := range t.Columns {
		var node parquet.Node
		switch col.Kind {
		case KindNumber:
			node = parquet.Leaf(parquet.DoubleType)
		case KindBool:
			node = parquet.Leaf(parquet.BooleanType)
		case KindTime:
			node = parquet.Timestamp(parquet.Millisecond)
		default:
			node = parquet.String()
		}
		group[col.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema("table", group)
}
