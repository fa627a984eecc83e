package duckdb

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/tabletalk/tabletalk/internal/exec"
)

func TestCollectRowsNormalizesBytes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT region, customers").WillReturnRows(
		sqlmock.NewRows([]string{"region", "customers"}).
			AddRow([]byte("north"), int64(2)).
			AddRow("south", int64(1)),
	)

	rows, err := db.Query("SELECT region, customers FROM t")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	defer func() { _ = rows.Close() }()

	columns, out, truncated, err := collectRows(rows, 10)
	if err != nil {
		t.Fatalf("collectRows() error = %v", err)
	}
	if truncated {
		t.Fatal("truncated = true, want false")
	}
	if len(columns) != 2 || len(out) != 2 {
		t.Fatalf("columns = %v, rows = %d", columns, len(out))
	}
	if out[0][0] != "north" {
		t.Fatalf("out[0][0] = %#v, want string north", out[0][0])
	}
}

func TestCollectRowsTruncates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	source := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		source.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n").WillReturnRows(source)

	rows, err := db.Query("SELECT n FROM t")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	defer func() { _ = rows.Close() }()

	_, out, truncated, err := collectRows(rows, 3)
	if err != nil {
		t.Fatalf("collectRows() error = %v", err)
	}
	if len(out) != 3 || !truncated {
		t.Fatalf("rows = %d truncated = %v, want 3 rows truncated", len(out), truncated)
	}
}

func TestCollectRowsRejectsTooManyColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	names := make([]string, maxResultColumns+1)
	values := make([]driver.Value, maxResultColumns+1)
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i)
		values[i] = int64(i)
	}
	mock.ExpectQuery("SELECT wide").WillReturnRows(sqlmock.NewRows(names).AddRow(values...))

	rows, err := db.Query("SELECT wide FROM t")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	defer func() { _ = rows.Close() }()

	if _, _, _, err := collectRows(rows, 10); !errors.Is(err, exec.ErrResultTooLarge) {
		t.Fatalf("collectRows() error = %v, want ErrResultTooLarge", err)
	}
}
