package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bauquery/bauquery/internal/nlq"
)

func newMockArchive(t *testing.T) (*Archive, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewArchive(db), mock
}

func TestSaveTurn(t *testing.T) {
	archive, mock := newMockArchive(t)
	askedAt := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO query_turns`).
		WithArgs("s1", "Wie viele Brandmelder gibt es?", "SELECT 1", 1, "24 in total.", askedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := archive.SaveTurn(context.Background(), nlq.TurnRecord{
		SessionID: "s1",
		Utterance: "Wie viele Brandmelder gibt es?",
		SQL:       "SELECT 1",
		RowCount:  1,
		Answer:    "24 in total.",
		At:        askedAt,
	})
	if err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveTurnPropagatesError(t *testing.T) {
	archive, mock := newMockArchive(t)

	mock.ExpectExec(`INSERT INTO query_turns`).
		WillReturnError(errors.New("connection refused"))

	err := archive.SaveTurn(context.Background(), nlq.TurnRecord{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRecentTurns(t *testing.T) {
	archive, mock := newMockArchive(t)
	askedAt := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"session_id", "utterance", "sql_query", "row_count", "answer", "asked_at"}).
		AddRow("s1", "second question", "SELECT 2", 2, "two rows", askedAt).
		AddRow("s1", "first question", "SELECT 1", 1, "one row", askedAt.Add(-time.Minute))

	mock.ExpectQuery(`SELECT session_id, utterance, sql_query, row_count, answer, asked_at`).
		WithArgs("s1", 20).
		WillReturnRows(rows)

	records, err := archive.RecentTurns(context.Background(), "s1", 0)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Utterance != "second question" {
		t.Fatalf("records[0] = %+v", records[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureSchema(t *testing.T) {
	archive, mock := newMockArchive(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS query_turns`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := archive.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
