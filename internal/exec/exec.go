// Package exec defines the constrained execution surface for model
// snippets. Implementations run one validated statement against one
// table snapshot and nothing else.
package exec

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout marks an execution stopped by the per-turn deadline.
	ErrTimeout = errors.New("execution timed out")
	// ErrResultTooLarge marks a result that breached the scan caps.
	ErrResultTooLarge = errors.New("result exceeds size limits")
)

// Request carries one validated snippet and the snapshot it may read.
type Request struct {
	SQL      string
	Snapshot string
	RowLimit int
}

// Result is the raw relational output of one execution.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
