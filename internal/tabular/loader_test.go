package tabular

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

const customersCSV = `name,age,active,joined,city
Ada,34,true,2024-01-15,Berlin
Ben,28,false,2024-02-01,Munich
Cleo,,true,2024-03-20,Berlin
`

func TestLoadCSVInfersKinds(t *testing.T) {
	table, err := Load("customers.csv", strings.NewReader(customersCSV), Limits{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.RowCount != 3 {
		t.Fatalf("RowCount = %d, want 3", table.RowCount)
	}
	if len(table.Columns) != 5 {
		t.Fatalf("columns = %d, want 5", len(table.Columns))
	}

	wantKinds := map[string]Kind{
		"name":   KindText,
		"age":    KindNumber,
		"active": KindBool,
		"joined": KindTime,
		"city":   KindText,
	}
	for name, want := range wantKinds {
		col, ok := table.Column(name)
		if !ok {
			t.Fatalf("column %q missing", name)
		}
		if col.Kind != want {
			t.Fatalf("column %q kind = %q, want %q", name, col.Kind, want)
		}
	}

	age, _ := table.Column("age")
	if age.Cells[0] != float64(34) {
		t.Fatalf("age[0] = %v, want 34", age.Cells[0])
	}
	if age.Cells[2] != nil {
		t.Fatalf("age[2] = %v, want nil", age.Cells[2])
	}

	joined, _ := table.Column("joined")
	wantTime := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	if !joined.Cells[0].(time.Time).Equal(wantTime) {
		t.Fatalf("joined[0] = %v, want %v", joined.Cells[0], wantTime)
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"region", "sales"},
		{"north", 120.5},
		{"south", 80},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error = %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	table, err := Load("report.xlsx", bytes.NewReader(buf.Bytes()), Limits{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", table.RowCount)
	}
	sales, ok := table.Column("sales")
	if !ok {
		t.Fatal("column sales missing")
	}
	if sales.Kind != KindNumber {
		t.Fatalf("sales kind = %q, want number", sales.Kind)
	}
	if sales.Cells[0] != 120.5 {
		t.Fatalf("sales[0] = %v, want 120.5", sales.Cells[0])
	}
}

func TestLoadEnforcesLimits(t *testing.T) {
	if _, err := Load("customers.csv", strings.NewReader(customersCSV), Limits{MaxRows: 2}); !errors.Is(err, ErrTooManyRows) {
		t.Fatalf("row limit error = %v, want ErrTooManyRows", err)
	}
	if _, err := Load("customers.csv", strings.NewReader(customersCSV), Limits{MaxColumns: 3}); !errors.Is(err, ErrTooManyColumns) {
		t.Fatalf("column limit error = %v, want ErrTooManyColumns", err)
	}
	if _, err := Load("customers.csv", strings.NewReader(customersCSV), Limits{MaxBytes: 16}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("byte limit error = %v, want ErrFileTooLarge", err)
	}
}

func TestLoadRejectsUnsupportedFormat(t *testing.T) {
	_, err := Load("notes.txt", strings.NewReader("hello"), Limits{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadRequiresDataRows(t *testing.T) {
	_, err := Load("empty.csv", strings.NewReader("name,age\n"), Limits{})
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("error = %v, want ErrEmptyFile", err)
	}
}

func TestSanitizeHeaders(t *testing.T) {
	got := sanitizeHeaders([]string{" name ", "", "name", "Name"})
	want := []string{"name", "column_2", "name_2", "Name_3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
