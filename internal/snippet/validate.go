// Package snippet gates model-generated SQL before execution. The gate
// enforces statement shape: exactly one statement, and it must be a
// SELECT or WITH. It also fast-fails calls to functions that reach for
// files, extensions or settings. The gate is a courtesy filter, not the
// security boundary; the executor removes those capabilities from the
// engine regardless.
package snippet

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrRejected marks a snippet the gate refused to pass to the executor.
var ErrRejected = errors.New("snippet rejected")

const maxSnippetBytes = 16 << 10

// deniedCalls lists function names that probe the host or the engine
// configuration. Matched only in call position so columns with the same
// name stay usable.
var deniedCalls = map[string]struct{}{
	"read_csv":            {},
	"read_csv_auto":       {},
	"read_parquet":        {},
	"read_json":           {},
	"read_json_auto":      {},
	"read_json_objects":   {},
	"read_ndjson":         {},
	"read_ndjson_auto":    {},
	"read_ndjson_objects": {},
	"read_text":           {},
	"read_blob":           {},
	"parquet_scan":        {},
	"parquet_metadata":    {},
	"parquet_schema":      {},
	"csv_scan":            {},
	"json_scan":           {},
	"sniff_csv":           {},
	"glob":                {},
	"getenv":              {},
	"current_setting":     {},
	"duckdb_settings":     {},
	"duckdb_extensions":   {},
	"install":             {},
	"load":                {},
	"attach":              {},
	"copy":                {},
}

// Validate checks one model-generated snippet and returns the cleaned
// statement (trimmed, trailing semicolons removed) ready for execution.
func Validate(sql string) (string, error) {
	cleaned := strings.TrimSpace(sql)
	for strings.HasSuffix(cleaned, ";") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))
	}
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty statement", ErrRejected)
	}
	if len(cleaned) > maxSnippetBytes {
		return "", fmt.Errorf("%w: statement exceeds %d bytes", ErrRejected, maxSnippetBytes)
	}
	if err := scan(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateLineComment
	stateBlockComment
)

// scan walks the statement once, tracking string/comment state. It
// checks the leading keyword, rejects statement separators outside
// strings and comments, and rejects denied function calls.
func scan(sql string) error {
	runes := []rune(sql)
	state := stateNormal
	firstKeyword := ""

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch state {
		case stateSingleQuote:
			if r == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i++
					continue
				}
				state = stateNormal
			}
		case stateDoubleQuote:
			if r == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					i++
					continue
				}
				state = stateNormal
			}
		case stateLineComment:
			if r == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if r == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				i++
				state = stateNormal
			}
		case stateNormal:
			switch {
			case r == '\'':
				state = stateSingleQuote
			case r == '"':
				state = stateDoubleQuote
			case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
				i++
				state = stateLineComment
			case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
				i++
				state = stateBlockComment
			case r == ';':
				return fmt.Errorf("%w: multiple statements", ErrRejected)
			case isIdentStart(r):
				start := i
				for i+1 < len(runes) && isIdentPart(runes[i+1]) {
					i++
				}
				word := strings.ToLower(string(runes[start : i+1]))
				if firstKeyword == "" {
					firstKeyword = word
					if word != "select" && word != "with" {
						return fmt.Errorf("%w: only SELECT or WITH statements are allowed, got %s", ErrRejected, strings.ToUpper(word))
					}
					continue
				}
				if _, denied := deniedCalls[word]; denied && callFollows(runes, i+1) {
					return fmt.Errorf("%w: function %s() is not available", ErrRejected, word)
				}
			}
		}
	}
	if firstKeyword == "" {
		return fmt.Errorf("%w: no statement found", ErrRejected)
	}
	return nil
}

// callFollows reports whether the next non-space rune opens an argument
// list, i.e. the identifier just read is in call position.
func callFollows(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) {
			continue
		}
		return runes[i] == '('
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
