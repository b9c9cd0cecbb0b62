// Package sqlite executes read-only statements against the bundled
// project database file using the pure-Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bauquery/bauquery/internal/query"
)

// ErrTimeout wraps deadline expiry so callers can distinguish a slow
// statement from a genuinely failing one.
var ErrTimeout = errors.New("query deadline exceeded")

// Open opens an existing database file. The dataset ships with the
// deployment; a missing file is a configuration error, not a reason to
// create an empty database.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat database file %q: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	return db, nil
}

type Engine struct {
	db      *sql.DB
	timeout time.Duration
}

func NewEngine(db *sql.DB, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Engine{db: db, timeout: timeout}
}

var _ query.Engine = (*Engine)(nil)

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := strings.TrimSpace(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if e.db == nil {
		return query.Result{}, fmt.Errorf("database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return query.Result{}, wrapContextErr(fmt.Errorf("acquire connection: %w", err))
	}
	defer func() { _ = conn.Close() }()

	// query_only is connection-scoped; it guarantees nothing past the
	// validator can write, including writes smuggled through subqueries.
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return query.Result{}, wrapContextErr(fmt.Errorf("enable read-only mode: %w", err))
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")
	}()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, wrapContextErr(fmt.Errorf("execute query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := query.Result{Columns: columns, Rows: make([]map[string]any, 0)}
	for rows.Next() {
		if request.RowLimit > 0 && len(result.Rows) >= request.RowLimit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, wrapContextErr(fmt.Errorf("iterate rows: %w", err))
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)
	return result, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func wrapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
