package tabular

import (
	"strconv"
	"strings"
	"time"
)

// kindThreshold is the share of non-empty cells that must parse as a
// candidate kind before the column adopts it. Below the threshold the
// column stays text and every cell is kept verbatim.
const kindThreshold = 0.9

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
}

func inferKind(raw []string) Kind {
	var nonEmpty, numbers, bools, times int
	for _, s := range raw {
		if s == "" {
			continue
		}
		nonEmpty++
		if _, ok := parseNumber(s); ok {
			numbers++
		}
		if _, ok := parseBool(s); ok {
			bools++
		}
		if _, ok := parseTime(s); ok {
			times++
		}
	}
	if nonEmpty == 0 {
		return KindText
	}

	meets := func(n int) bool {
		return float64(n) >= kindThreshold*float64(nonEmpty)
	}
	// Bool wins over number so explicit true/false columns stay bool;
	// 0/1 flag columns parse as numbers only and stay numeric.
	switch {
	case meets(bools) && bools >= numbers:
		return KindBool
	case meets(numbers):
		return KindNumber
	case meets(times):
		return KindTime
	default:
		return KindText
	}
}

func parseCells(raw []string, kind Kind) []any {
	cells := make([]any, len(raw))
	for i, s := range raw {
		if s == "" {
			cells[i] = nil
			continue
		}
		switch kind {
		case KindNumber:
			if v, ok := parseNumber(s); ok {
				cells[i] = v
			} else {
				cells[i] = nil
			}
		case KindBool:
			if v, ok := parseBool(s); ok {
				cells[i] = v
			} else {
				cells[i] = nil
			}
		case KindTime:
			if v, ok := parseTime(s); ok {
				cells[i] = v
			} else {
				cells[i] = nil
			}
		default:
			cells[i] = s
		}
	}
	return cells
}

func parseNumber(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	default:
		return false, false
	}
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
