// Package render turns raw execution output and model answers into the
// transcript-facing result union: text, table, chart or error. Nothing
// downstream of this package re-derives anything from the table; a
// rendered result is self-contained.
package render

import (
	"errors"

	"github.com/tabletalk/tabletalk/internal/exec"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

// ErrUnrenderable marks output that cannot take the requested shape,
// e.g. a chart over non-numeric columns.
var ErrUnrenderable = errors.New("result cannot be rendered")

type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
	KindChart Kind = "chart"
	KindError Kind = "error"
)

// Result is the tagged union stored in the transcript. Exactly one of
// the pointer fields matching Kind is set.
type Result struct {
	Kind  Kind         `json:"kind"`
	Text  *TextResult  `json:"text,omitempty"`
	Table *TableResult `json:"table,omitempty"`
	Chart *ChartResult `json:"chart,omitempty"`
	Error *ErrorResult `json:"error,omitempty"`
}

type TextResult struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

type TableResult struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	RowCount  int        `json:"row_count"`
	Truncated bool       `json:"truncated"`
}

type ErrorResult struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FromText renders a model text answer. Raw HTML in the markdown is
// dropped, not escaped.
func FromText(md string) Result {
	return Result{
		Kind: KindText,
		Text: &TextResult{Markdown: md, HTML: toHTML(md)},
	}
}

// FromError renders a failed turn. Every turn-boundary failure ends up
// here so the transcript stays append-only even on errors.
func FromError(code, message string) Result {
	return Result{
		Kind:  KindError,
		Error: &ErrorResult{Code: code, Message: message},
	}
}

// FromExec renders executor output. A chart directive takes precedence;
// otherwise single-cell results collapse to text and everything else
// becomes a table.
func FromExec(res exec.Result, spec *model.ChartSpec) (Result, error) {
	if spec != nil && spec.Type != "" {
		chart, err := buildChart(res, spec)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindChart, Chart: chart}, nil
	}
	if len(res.Rows) == 0 {
		return FromText("No rows matched."), nil
	}
	if len(res.Rows) == 1 && len(res.Columns) == 1 {
		return FromText(tabular.FormatCell(res.Rows[0][0])), nil
	}
	return Result{Kind: KindTable, Table: tableFromExec(res)}, nil
}

func tableFromExec(res exec.Result) *TableResult {
	rows := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		formatted := make([]string, len(row))
		for j, cell := range row {
			formatted[j] = tabular.FormatCell(cell)
		}
		rows[i] = formatted
	}
	return &TableResult{
		Columns:   res.Columns,
		Rows:      rows,
		RowCount:  len(rows),
		Truncated: res.Truncated,
	}
}
