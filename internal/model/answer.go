package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyAnswer marks a completion with no usable content.
	ErrEmptyAnswer = errors.New("model returned an empty answer")
	// ErrMalformedAnswer marks content that does not decode into the
	// answer envelope.
	ErrMalformedAnswer = errors.New("model returned a malformed answer")
)

const (
	KindSQL  = "sql"
	KindText = "text"
)

// ChartSpec is the model's optional chart directive. Column references
// are validated against the query result at render time, not here.
type ChartSpec struct {
	Type  string `json:"type"`
	X     string `json:"x"`
	Y     string `json:"y"`
	Title string `json:"title,omitempty"`
}

// Answer is the typed envelope decoded from one chat completion.
type Answer struct {
	Kind     string
	SQL      string
	Text     string
	Chart    *ChartSpec
	Provider string
	Model    string
}

// DecodeAnswer parses raw completion content into an Answer. Markdown
// fences and prose around the JSON object are tolerated; everything
// else is rejected so the caller can surface a model error.
func DecodeAnswer(content string) (Answer, error) {
	trimmed := strings.TrimSpace(stripFences(content))
	if trimmed == "" {
		return Answer{}, ErrEmptyAnswer
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return Answer{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedAnswer, excerpt(trimmed))
	}

	var envelope struct {
		Kind  string     `json:"kind"`
		SQL   string     `json:"sql"`
		Text  string     `json:"text"`
		Chart *ChartSpec `json:"chart"`
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &envelope); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}

	answer := Answer{
		Kind:  strings.ToLower(strings.TrimSpace(envelope.Kind)),
		SQL:   strings.TrimSpace(envelope.SQL),
		Text:  strings.TrimSpace(envelope.Text),
		Chart: envelope.Chart,
	}
	switch answer.Kind {
	case KindSQL:
		if answer.SQL == "" {
			return Answer{}, fmt.Errorf("%w: kind sql without sql", ErrMalformedAnswer)
		}
	case KindText:
		if answer.Text == "" {
			return Answer{}, fmt.Errorf("%w: kind text without text", ErrMalformedAnswer)
		}
		answer.Chart = nil
	default:
		return Answer{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedAnswer, envelope.Kind)
	}
	if answer.Chart != nil {
		answer.Chart.Type = strings.ToLower(strings.TrimSpace(answer.Chart.Type))
	}
	return answer, nil
}

func stripFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func excerpt(value string) string {
	const max = 80
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
