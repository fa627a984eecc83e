package tabular

import (
	"math"
	"testing"
)

func TestProfileNumericColumn(t *testing.T) {
	table := &Table{
		RowCount: 4,
		Columns: []Column{
			{Name: "income", Kind: KindNumber, Cells: []any{10.0, 20.0, 30.0, nil}},
			{Name: "region", Kind: KindText, Cells: []any{"north", "south", "north", "north"}},
		},
	}

	if err := Profile(table); err != nil {
		t.Fatalf("Profile() error = %v", err)
	}

	income := table.Columns[0].Profile
	if income.NonNullCount != 3 {
		t.Fatalf("NonNullCount = %d, want 3", income.NonNullCount)
	}
	if income.Min != 10 || income.Max != 30 {
		t.Fatalf("Min/Max = %v/%v, want 10/30", income.Min, income.Max)
	}
	if income.Mean != 20 {
		t.Fatalf("Mean = %v, want 20", income.Mean)
	}
	if income.Median != 20 {
		t.Fatalf("Median = %v, want 20", income.Median)
	}
	if math.Abs(income.StdDev-10) > 1e-9 {
		t.Fatalf("StdDev = %v, want 10", income.StdDev)
	}

	region := table.Columns[1].Profile
	if region.DistinctCount != 2 {
		t.Fatalf("DistinctCount = %d, want 2", region.DistinctCount)
	}
	if region.Mean != 0 {
		t.Fatalf("text column Mean = %v, want 0", region.Mean)
	}
}

func TestSampleValuesDistinct(t *testing.T) {
	col := Column{Name: "city", Kind: KindText, Cells: []any{"Berlin", nil, "Berlin", "Munich", "Hamburg"}}
	got := col.SampleValues(2)
	if len(got) != 2 || got[0] != "Berlin" || got[1] != "Munich" {
		t.Fatalf("SampleValues = %v, want [Berlin Munich]", got)
	}
}
