package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bauquery/bauquery/internal/nlq"
)

type Archive struct {
	db *sql.DB
}

func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

var _ nlq.Archiver = (*Archive)(nil)

// EnsureSchema creates the archive table on first use.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS query_turns (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	utterance TEXT NOT NULL,
	sql_query TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	answer TEXT NOT NULL,
	asked_at TIMESTAMPTZ NOT NULL
)`
	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

func (a *Archive) SaveTurn(ctx context.Context, record nlq.TurnRecord) error {
	query := `
INSERT INTO query_turns (session_id, utterance, sql_query, row_count, answer, asked_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := a.db.ExecContext(ctx, query,
		record.SessionID, record.Utterance, record.SQL, record.RowCount, record.Answer, record.At)
	if err != nil {
		return fmt.Errorf("save query turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest turns for a session, newest first.
func (a *Archive) RecentTurns(ctx context.Context, sessionID string, limit int) ([]nlq.TurnRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT session_id, utterance, sql_query, row_count, answer, asked_at
FROM query_turns
WHERE session_id = $1
ORDER BY asked_at DESC
LIMIT $2`
	rows, err := a.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []nlq.TurnRecord
	for rows.Next() {
		var record nlq.TurnRecord
		var askedAt time.Time
		if err := rows.Scan(&record.SessionID, &record.Utterance, &record.SQL,
			&record.RowCount, &record.Answer, &askedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		record.At = askedAt
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}
