package seeder

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestGenerateIsDeterministic(t *testing.T) {
	first := Generate(50, 7)
	second := Generate(50, 7)
	if len(first.Customers) != 50 || len(second.Customers) != 50 {
		t.Fatalf("rows = %d/%d, want 50", len(first.Customers), len(second.Customers))
	}
	for i := range first.Customers {
		if first.Customers[i] != second.Customers[i] {
			t.Fatalf("row %d differs between runs: %+v vs %+v", i, first.Customers[i], second.Customers[i])
		}
	}
}

func TestGenerateStaysInRange(t *testing.T) {
	dataset := Generate(200, 1)
	validRegions := map[string]bool{"north": true, "south": true, "east": true, "west": true}
	for _, c := range dataset.Customers {
		if !validRegions[c.Region] {
			t.Fatalf("unexpected region %q", c.Region)
		}
		if c.Income < 30000 || c.Income > 121000 {
			t.Fatalf("income %v out of range", c.Income)
		}
		if c.Sales < 20 || c.Sales > 500 {
			t.Fatalf("sales %v out of range", c.Sales)
		}
	}
}

func TestWriteCSVShape(t *testing.T) {
	dataset := Generate(10, 3)
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 11 {
		t.Fatalf("records = %d, want 11 (header + 10 rows)", len(records))
	}
	if records[0][0] != "customer_id" || records[0][6] != "loan_approved" {
		t.Fatalf("header = %v", records[0])
	}
	for i, row := range records {
		if len(row) != 7 {
			t.Fatalf("row %d has %d cells, want 7", i, len(row))
		}
	}
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	dataset := Generate(5, 3)
	var buf bytes.Buffer
	if err := dataset.WriteXLSX(&buf); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen xlsx: %v", err)
	}
	defer func() { _ = file.Close() }()

	rows, err := file.GetRows(file.GetSheetName(0))
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("rows = %d, want 6 (header + 5)", len(rows))
	}
	if rows[0][0] != "customer_id" {
		t.Fatalf("first header cell = %q", rows[0][0])
	}
}

func TestSaveFilesWritesBoth(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	dataset := Generate(5, 3)
	csvPath, xlsxPath, err := dataset.SaveFiles(dir)
	if err != nil {
		t.Fatalf("SaveFiles: %v", err)
	}
	for _, path := range []string{csvPath, xlsxPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}
