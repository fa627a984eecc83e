// Package duckdb executes snippets on a capability-stripped in-process
// DuckDB. Every execution gets a fresh in-memory database: the snapshot
// is materialized into the single table binding, then external access
// and configuration changes are switched off before the snippet runs.
// The snippet's scope therefore holds exactly one table and the
// built-in pure functions.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"golang.org/x/sync/semaphore"

	"github.com/tabletalk/tabletalk/internal/exec"
	"github.com/tabletalk/tabletalk/internal/storage"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

const (
	maxResultColumns = 64
	maxResultCells   = 50000
)

type Config struct {
	Timeout       time.Duration
	RowLimit      int
	MemoryLimitMB int
	MaxConcurrent int
}

type Engine struct {
	store storage.ObjectStore
	cfg   Config
	sem   *semaphore.Weighted
}

func NewEngine(store storage.ObjectStore, cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = 500
	}
	if cfg.MemoryLimitMB <= 0 {
		cfg.MemoryLimitMB = 256
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

func (e *Engine) Execute(ctx context.Context, request exec.Request) (exec.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return exec.Result{}, fmt.Errorf("sql is required")
	}
	if strings.TrimSpace(request.Snapshot) == "" {
		return exec.Result{}, fmt.Errorf("snapshot key is required")
	}
	if e.store == nil {
		return exec.Result{}, fmt.Errorf("object store is required")
	}

	// Queueing for a slot is bounded by the caller's context; the
	// execution deadline starts only once a slot is held.
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return exec.Result{}, fmt.Errorf("acquire execution slot: %w", err)
	}
	defer e.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	workDir, err := os.MkdirTemp("", "tabletalk-exec-")
	if err != nil {
		return exec.Result{}, fmt.Errorf("create exec temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, "table.parquet")
	reader, err := e.store.Get(ctx, request.Snapshot)
	if err != nil {
		return exec.Result{}, fmt.Errorf("get snapshot %q: %w", request.Snapshot, err)
	}
	if err := writeFile(localPath, reader); err != nil {
		_ = reader.Close()
		return exec.Result{}, fmt.Errorf("write local snapshot: %w", err)
	}
	if err := reader.Close(); err != nil {
		return exec.Result{}, fmt.Errorf("close snapshot %q: %w", request.Snapshot, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return exec.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Materialize before lockdown: a view over read_parquet would
	// lazily re-read the file after external access is revoked.
	setup := []string{
		fmt.Sprintf("SET memory_limit='%dMB'", e.cfg.MemoryLimitMB),
		"SET threads=1",
		fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_parquet(%s)",
			quoteIdent(tabular.BindingName), quoteString(localPath)),
		"SET enable_external_access=false",
		"SET lock_configuration=true",
	}
	for _, stmt := range setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if ctx.Err() != nil {
				return exec.Result{}, fmt.Errorf("%w after %s", exec.ErrTimeout, e.cfg.Timeout)
			}
			return exec.Result{}, fmt.Errorf("prepare engine: %s", scrub(err, workDir))
		}
	}

	rowLimit := request.RowLimit
	if rowLimit <= 0 || rowLimit > e.cfg.RowLimit {
		rowLimit = e.cfg.RowLimit
	}
	// One extra row distinguishes "exactly at the cap" from truncated.
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", request.SQL, rowLimit+1)

	rows, err := db.QueryContext(ctx, wrapped)
	if err != nil {
		if ctx.Err() != nil {
			return exec.Result{}, fmt.Errorf("%w after %s", exec.ErrTimeout, e.cfg.Timeout)
		}
		return exec.Result{}, fmt.Errorf("execute snippet: %s", scrub(err, workDir))
	}
	defer func() { _ = rows.Close() }()

	columns, resultRows, truncated, err := collectRows(rows, rowLimit)
	if err != nil {
		if ctx.Err() != nil {
			return exec.Result{}, fmt.Errorf("%w after %s", exec.ErrTimeout, e.cfg.Timeout)
		}
		return exec.Result{}, err
	}

	return exec.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

// collectRows scans up to rowLimit rows, enforcing the column and cell
// caps. It reports truncation when the source had more rows than the cap.
func collectRows(rows *sql.Rows, rowLimit int) ([]string, [][]any, bool, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, false, fmt.Errorf("read result columns: %w", err)
	}
	if len(columns) > maxResultColumns {
		return nil, nil, false, fmt.Errorf("%w: %d columns, limit %d", exec.ErrResultTooLarge, len(columns), maxResultColumns)
	}

	resultRows := make([][]any, 0)
	cells := 0
	truncated := false
	for rows.Next() {
		if len(resultRows) == rowLimit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, false, fmt.Errorf("scan row: %w", err)
		}
		cells += len(columns)
		if cells > maxResultCells {
			return nil, nil, false, fmt.Errorf("%w: more than %d cells", exec.ErrResultTooLarge, maxResultCells)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, resultRows, truncated, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

// scrub keeps engine error text user-presentable: host temp paths never
// leave the executor.
func scrub(err error, workDir string) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), workDir, "<snapshot>")
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
