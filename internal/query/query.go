// Package query defines the read-only execution contract against the
// project dataset. Engines run exactly the SQL they are handed; all
// safety screening happens before a statement reaches an engine.
package query

import (
	"context"
	"time"
)

// Request carries one validated statement. RowLimit is a hard ceiling on
// rows materialized regardless of what the statement itself asks for.
type Request struct {
	SQL      string
	RowLimit int
}

// Result is a fully materialized result set. Rows preserve column order
// through Columns; each row maps column name to a driver-normalized value.
type Result struct {
	Columns   []string
	Rows      []map[string]any
	RowCount  int
	Truncated bool
	Duration  time.Duration
}

// Engine executes read-only SQL against the dataset.
type Engine interface {
	Execute(ctx context.Context, req Request) (Result, error)
}
