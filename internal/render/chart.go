package render

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/tabletalk/tabletalk/internal/exec"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

const (
	ChartBar       = "bar"
	ChartLine      = "line"
	ChartScatter   = "scatter"
	ChartHistogram = "histogram"
)

const maxHistogramBins = 10

// ChartResult carries ready-to-draw series. Categorical charts use
// Labels+Values; numeric ones use Points.
type ChartResult struct {
	Type   string    `json:"type"`
	Title  string    `json:"title,omitempty"`
	XLabel string    `json:"x_label,omitempty"`
	YLabel string    `json:"y_label,omitempty"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Points []Point   `json:"points,omitempty"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func buildChart(res exec.Result, spec *model.ChartSpec) (*ChartResult, error) {
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%w: chart over an empty result", ErrUnrenderable)
	}
	switch spec.Type {
	case ChartBar:
		return buildBar(res, spec)
	case ChartLine:
		return buildLine(res, spec)
	case ChartScatter:
		return buildScatter(res, spec)
	case ChartHistogram:
		return buildHistogram(res, spec)
	default:
		return nil, fmt.Errorf("%w: unsupported chart type %q", ErrUnrenderable, spec.Type)
	}
}

func buildBar(res exec.Result, spec *model.ChartSpec) (*ChartResult, error) {
	xi, yi, err := resolveXY(res, spec)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(res.Rows))
	values := make([]float64, 0, len(res.Rows))
	for _, row := range res.Rows {
		y, ok := cellToFloat(row[yi])
		if !ok {
			continue
		}
		labels = append(labels, tabular.FormatCell(row[xi]))
		values = append(values, y)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: column %q has no numeric values", ErrUnrenderable, res.Columns[yi])
	}
	return &ChartResult{
		Type:   ChartBar,
		Title:  spec.Title,
		XLabel: res.Columns[xi],
		YLabel: res.Columns[yi],
		Labels: labels,
		Values: values,
	}, nil
}

func buildLine(res exec.Result, spec *model.ChartSpec) (*ChartResult, error) {
	xi, yi, err := resolveXY(res, spec)
	if err != nil {
		return nil, err
	}
	// A numeric x axis becomes points; anything else (text, time)
	// keeps row order as a labeled series.
	numericX := false
	for _, row := range res.Rows {
		if row[xi] == nil {
			continue
		}
		_, numericX = cellToFloat(row[xi])
		break
	}

	chart := &ChartResult{
		Type:   ChartLine,
		Title:  spec.Title,
		XLabel: res.Columns[xi],
		YLabel: res.Columns[yi],
	}
	for _, row := range res.Rows {
		y, ok := cellToFloat(row[yi])
		if !ok {
			continue
		}
		if numericX {
			x, ok := cellToFloat(row[xi])
			if !ok {
				continue
			}
			chart.Points = append(chart.Points, Point{X: x, Y: y})
		} else {
			chart.Labels = append(chart.Labels, tabular.FormatCell(row[xi]))
			chart.Values = append(chart.Values, y)
		}
	}
	if len(chart.Points) == 0 && len(chart.Values) == 0 {
		return nil, fmt.Errorf("%w: column %q has no numeric values", ErrUnrenderable, res.Columns[yi])
	}
	return chart, nil
}

func buildScatter(res exec.Result, spec *model.ChartSpec) (*ChartResult, error) {
	xi, yi, err := resolveXY(res, spec)
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, len(res.Rows))
	for _, row := range res.Rows {
		x, okX := cellToFloat(row[xi])
		y, okY := cellToFloat(row[yi])
		if !okX || !okY {
			continue
		}
		points = append(points, Point{X: x, Y: y})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: scatter needs numeric %q and %q", ErrUnrenderable, res.Columns[xi], res.Columns[yi])
	}
	return &ChartResult{
		Type:   ChartScatter,
		Title:  spec.Title,
		XLabel: res.Columns[xi],
		YLabel: res.Columns[yi],
		Points: points,
	}, nil
}

// buildHistogram bins one numeric column. Bin count follows Sturges'
// rule capped at maxHistogramBins.
func buildHistogram(res exec.Result, spec *model.ChartSpec) (*ChartResult, error) {
	source := spec.X
	if source == "" {
		source = spec.Y
	}
	si := 0
	if source != "" {
		si = columnIndex(res.Columns, source)
		if si < 0 {
			return nil, fmt.Errorf("%w: chart column %q is not in the result", ErrUnrenderable, source)
		}
	} else if si = firstNumericColumn(res, -1); si < 0 {
		return nil, fmt.Errorf("%w: no numeric column to bin", ErrUnrenderable)
	}

	values := make([]float64, 0, len(res.Rows))
	for _, row := range res.Rows {
		if v, ok := cellToFloat(row[si]); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: column %q has no numeric values", ErrUnrenderable, res.Columns[si])
	}

	chart := &ChartResult{
		Type:   ChartHistogram,
		Title:  spec.Title,
		XLabel: res.Columns[si],
		YLabel: "count",
	}

	sort.Float64s(values)
	min, max := values[0], values[len(values)-1]
	if min == max {
		chart.Labels = []string{formatFloat(min)}
		chart.Values = []float64{float64(len(values))}
		return chart, nil
	}

	bins := int(math.Ceil(math.Log2(float64(len(values))))) + 1
	if bins < 1 {
		bins = 1
	}
	if bins > maxHistogramBins {
		bins = maxHistogramBins
	}
	dividers := make([]float64, bins+1)
	width := (max - min) / float64(bins)
	for i := range dividers {
		dividers[i] = min + width*float64(i)
	}
	// Dividers are half-open; nudge the top so max lands in the last bin.
	dividers[bins] = math.Nextafter(max, math.Inf(1))

	counts := stat.Histogram(nil, dividers, values, nil)
	chart.Values = counts
	chart.Labels = make([]string, bins)
	for i := 0; i < bins; i++ {
		low, high := dividers[i], min+width*float64(i+1)
		if i == bins-1 {
			chart.Labels[i] = fmt.Sprintf("[%s, %s]", formatFloat(low), formatFloat(max))
		} else {
			chart.Labels[i] = fmt.Sprintf("[%s, %s)", formatFloat(low), formatFloat(high))
		}
	}
	return chart, nil
}

// resolveXY picks the x and y columns for bar/line/scatter charts:
// named columns when the directive gives them, otherwise the first
// column for x and the first numeric non-x column for y.
func resolveXY(res exec.Result, spec *model.ChartSpec) (int, int, error) {
	xi := 0
	if spec.X != "" {
		xi = columnIndex(res.Columns, spec.X)
		if xi < 0 {
			return 0, 0, fmt.Errorf("%w: chart column %q is not in the result", ErrUnrenderable, spec.X)
		}
	}
	yi := -1
	if spec.Y != "" {
		yi = columnIndex(res.Columns, spec.Y)
		if yi < 0 {
			return 0, 0, fmt.Errorf("%w: chart column %q is not in the result", ErrUnrenderable, spec.Y)
		}
	} else if yi = firstNumericColumn(res, xi); yi < 0 {
		return 0, 0, fmt.Errorf("%w: no numeric column for the y axis", ErrUnrenderable)
	}
	return xi, yi, nil
}

func columnIndex(columns []string, name string) int {
	for i, column := range columns {
		if strings.EqualFold(column, name) {
			return i
		}
	}
	return -1
}

func firstNumericColumn(res exec.Result, skip int) int {
	for j := range res.Columns {
		if j == skip {
			continue
		}
		for _, row := range res.Rows {
			if _, ok := cellToFloat(row[j]); ok {
				return j
			}
		}
	}
	return -1
}

func cellToFloat(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case int:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case *big.Int:
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, true
	default:
		return 0, false
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
