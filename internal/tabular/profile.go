package tabular

import (
	"fmt"
	"runtime"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// ColumnProfile summarizes a column for prompt context and previews.
// Numeric fields are only populated for KindNumber columns.
type ColumnProfile struct {
	NonNullCount  int
	DistinctCount int
	Min           float64
	Max           float64
	Mean          float64
	Median        float64
	StdDev        float64
}

// Profile fills each column's profile in place. Columns are profiled
// concurrently; the table is otherwise not modified.
func Profile(t *Table) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range t.Columns {
		col := &t.Columns[i]
		g.Go(func() error {
			profile, err := profileColumn(col)
			if err != nil {
				return fmt.Errorf("column %q: %w", col.Name, err)
			}
			col.Profile = profile
			return nil
		})
	}
	return g.Wait()
}

func profileColumn(col *Column) (ColumnProfile, error) {
	profile := ColumnProfile{}
	distinct := make(map[string]struct{})
	numbers := make([]float64, 0, len(col.Cells))

	for _, cell := range col.Cells {
		if cell == nil {
			continue
		}
		profile.NonNullCount++
		distinct[FormatCell(cell)] = struct{}{}
		if v, ok := cell.(float64); ok {
			numbers = append(numbers, v)
		}
	}
	profile.DistinctCount = len(distinct)

	if col.Kind != KindNumber || len(numbers) == 0 {
		return profile, nil
	}

	var err error
	if profile.Min, err = stats.Min(numbers); err != nil {
		return profile, err
	}
	if profile.Max, err = stats.Max(numbers); err != nil {
		return profile, err
	}
	if profile.Mean, err = stats.Mean(numbers); err != nil {
		return profile, err
	}
	if profile.Median, err = stats.Median(numbers); err != nil {
		return profile, err
	}
	if len(numbers) > 1 {
		if profile.StdDev, err = stats.StandardDeviationSample(numbers); err != nil {
			return profile, err
		}
	}
	return profile, nil
}
