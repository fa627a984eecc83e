// Package prompt builds the chat messages sent to the model for one
// turn: the table schema with samples and numeric ranges, the dialect
// rules, and the answer-envelope contract.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tabletalk/tabletalk/internal/tabular"
)

var (
	ErrNoTable         = errors.New("no table loaded")
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question is too long")
)

type Config struct {
	SampleValues   int
	MaxQuestionLen int
}

type Composer struct {
	sampleValues   int
	maxQuestionLen int
}

func NewComposer(cfg Config) *Composer {
	sampleValues := cfg.SampleValues
	if sampleValues <= 0 {
		sampleValues = 2
	}
	maxQuestionLen := cfg.MaxQuestionLen
	if maxQuestionLen <= 0 {
		maxQuestionLen = 1000
	}
	return &Composer{
		sampleValues:   sampleValues,
		maxQuestionLen: maxQuestionLen,
	}
}

// Prompt is a composed system/user message pair for one chat completion.
type Prompt struct {
	System string
	User   string
}

type tableContext struct {
	Table    string          `json:"table"`
	RowCount int             `json:"row_count"`
	Columns  []columnContext `json:"columns"`
}

type columnContext struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Samples []string `json:"samples,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

const systemPrompt = `You answer questions about a single uploaded spreadsheet by writing DuckDB SQL. DuckDB uses PostgreSQL-like SQL syntax.
Reply with exactly one JSON object and nothing else. No markdown fences, no prose around it.
The object is either
  {"kind":"sql","sql":"<one SELECT or WITH statement>"}
optionally with "chart":{"type":"bar|line|scatter|histogram","x":"<column>","y":"<column>","title":"<short title>"} when the user asked for a chart or a chart is the clearest answer, or
  {"kind":"text","text":"<direct answer>"}
when the question cannot be answered by querying the table.`

// Compose builds the messages for one question against the loaded table.
func (c *Composer) Compose(t *tabular.Table, question string) (Prompt, error) {
	if t == nil {
		return Prompt{}, ErrNoTable
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return Prompt{}, ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > c.maxQuestionLen {
		return Prompt{}, fmt.Errorf("%w: %d runes, limit %d", ErrQuestionTooLong, utf8.RuneCountInString(question), c.maxQuestionLen)
	}

	contextJSON, err := json.Marshal(c.tableContext(t))
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal table context: %w", err)
	}

	user := fmt.Sprintf(
		"Table context (JSON):\n%s\n\nQuestion:\n%s\n\nRules:\n"+
			"- The only relation is %q. No other tables, files, schemas or catalogs exist.\n"+
			"- Write exactly one SELECT or WITH statement. Never modify data.\n"+
			"- Use only the listed columns, quoted with double quotes when they contain spaces.\n"+
			"- For charts, the x and y fields must name columns of your query's result.\n"+
			"- Keep result sets small; aggregate rather than listing raw rows unless asked.",
		string(contextJSON),
		question,
		tabular.BindingName,
	)

	return Prompt{System: systemPrompt, User: user}, nil
}

func (c *Composer) tableContext(t *tabular.Table) tableContext {
	columns := make([]columnContext, 0, len(t.Columns))
	for _, col := range t.Columns {
		cc := columnContext{
			Name:    col.Name,
			Type:    string(col.Kind),
			Samples: col.SampleValues(c.sampleValues),
		}
		if col.Kind == tabular.KindNumber && col.Profile.NonNullCount > 0 {
			min, max := col.Profile.Min, col.Profile.Max
			cc.Min, cc.Max = &min, &max
		}
		columns = append(columns, cc)
	}
	return tableContext{
		Table:    tabular.BindingName,
		RowCount: t.RowCount,
		Columns:  columns,
	}
}
