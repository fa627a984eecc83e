package tabular

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

func TestEncodeTableToParquetRoundTrip(t *testing.T) {
	loaded := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	table := &Table{
		SourceName: "customers.csv",
		RowCount:   2,
		Columns: []Column{
			{Name: "name", Kind: KindText, Cells: []any{"Ada", "Ben"}},
			{Name: "income", Kind: KindNumber, Cells: []any{52000.0, nil}},
			{Name: "active", Kind: KindBool, Cells: []any{true, false}},
			{Name: "joined", Kind: KindTime, Cells: []any{loaded, nil}},
		},
	}

	data, err := EncodeTableToParquet(table)
	if err != nil {
		t.Fatalf("EncodeTableToParquet() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty parquet payload")
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parquet.OpenFile() error = %v", err)
	}
	reader := parquet.NewGenericReader[map[string]any](bytes.NewReader(data), file.Schema())
	defer func() { _ = reader.Close() }()
	rows := []map[string]any{{}, {}}
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("read rows = %d, want 2", count)
	}

	if got := asString(rows[0]["name"]); got != "Ada" {
		t.Fatalf("name[0] = %q, want Ada", got)
	}
	if got, ok := rows[0]["income"].(float64); !ok || got != 52000.0 {
		t.Fatalf("income[0] = %v, want 52000", rows[0]["income"])
	}
	if got, ok := rows[1]["active"].(bool); !ok || got {
		t.Fatalf("active[1] = %v, want false", rows[1]["active"])
	}
	if v, ok := rows[1]["income"]; ok && v != nil {
		t.Fatalf("income[1] = %v, want null", v)
	}
}

func TestEncodeTableToParquetRequiresColumns(t *testing.T) {
	if _, err := EncodeTableToParquet(&Table{}); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}
