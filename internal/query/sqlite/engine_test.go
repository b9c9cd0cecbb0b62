package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bauquery/bauquery/internal/query"
)

func openSeeded(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	statements := []string{
		`CREATE TABLE stories (story_id TEXT PRIMARY KEY, story_code TEXT NOT NULL, story_name TEXT NOT NULL, floor_level INTEGER NOT NULL)`,
		`CREATE TABLE elements (element_id TEXT PRIMARY KEY, element_code TEXT NOT NULL, element_name TEXT NOT NULL, category TEXT NOT NULL, unit TEXT NOT NULL)`,
		`CREATE TABLE story_elements (id INTEGER PRIMARY KEY AUTOINCREMENT, story_id TEXT NOT NULL, element_id TEXT NOT NULL, quantity REAL NOT NULL)`,
		`INSERT INTO stories VALUES ('ST001', 'EG', 'Erdgeschoss', 0), ('ST002', '1OG', '1. Obergeschoss', 1)`,
		`INSERT INTO elements VALUES ('EL001', 'BM001', 'Brandmelder', 'Brandschutz', 'Stk'), ('EL002', 'TUER01', 'Brandschutztuer T30', 'Tueren', 'Stk')`,
		`INSERT INTO story_elements (story_id, element_id, quantity) VALUES ('ST001', 'EL001', 10), ('ST002', 'EL001', 8), ('ST001', 'EL002', 4)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return db
}

func TestOpenRejectsMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.db"))
	if err == nil {
		t.Fatal("Open should fail when the database file does not exist")
	}
}

func TestExecuteSelect(t *testing.T) {
	engine := NewEngine(openSeeded(t), time.Second)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT element_name, SUM(quantity) AS total FROM story_elements se JOIN elements e ON e.element_id = se.element_id GROUP BY element_name ORDER BY total DESC",
		RowLimit: 100,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", result.RowCount)
	}
	if result.Columns[0] != "element_name" || result.Columns[1] != "total" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if result.Rows[0]["element_name"] != "Brandmelder" {
		t.Fatalf("first row = %v", result.Rows[0])
	}
	if total, ok := result.Rows[0]["total"].(float64); !ok || total != 18 {
		t.Fatalf("total = %v, want 18", result.Rows[0]["total"])
	}
	if result.Truncated {
		t.Fatal("result should not be truncated")
	}
}

func TestExecuteTruncatesAtRowLimit(t *testing.T) {
	engine := NewEngine(openSeeded(t), time.Second)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT * FROM story_elements",
		RowLimit: 2,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", result.RowCount)
	}
	if !result.Truncated {
		t.Fatal("result should be marked truncated")
	}
}

func TestExecuteRejectsWrites(t *testing.T) {
	engine := NewEngine(openSeeded(t), time.Second)

	_, err := engine.Execute(context.Background(), query.Request{
		SQL:      "INSERT INTO stories VALUES ('ST099', '9OG', 'Phantom', 9)",
		RowLimit: 10,
	})
	if err == nil {
		t.Fatal("write statement should fail on a read-only connection")
	}

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT COUNT(*) AS n FROM stories",
		RowLimit: 10,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n, _ := result.Rows[0]["n"].(int64); n != 2 {
		t.Fatalf("stories count = %v, want 2", result.Rows[0]["n"])
	}
}

func TestExecuteTimeout(t *testing.T) {
	engine := NewEngine(openSeeded(t), time.Nanosecond)

	_, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT * FROM stories",
		RowLimit: 10,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestInfoCounts(t *testing.T) {
	db := openSeeded(t)

	info, err := Info(context.Background(), db)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	want := DatasetInfo{Stories: 2, Elements: 2, Categories: 2, Relationships: 3, TotalItems: 22}
	if info != want {
		t.Fatalf("Info = %+v, want %+v", info, want)
	}
}
