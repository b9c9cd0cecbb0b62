package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dataset.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func TestUpBuildsDataset(t *testing.T) {
	db := openTestDB(t)
	runner := NewRunner()

	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if applied != 3 {
		t.Fatalf("applied = %d, want 3", applied)
	}

	if got := countRows(t, db, "stories"); got != 4 {
		t.Errorf("stories = %d, want 4", got)
	}
	if got := countRows(t, db, "elements"); got != 59 {
		t.Errorf("elements = %d, want 59", got)
	}
	if got := countRows(t, db, "story_elements"); got != 97 {
		t.Errorf("story_elements = %d, want 97", got)
	}
	if got := countRows(t, db, "story_elements_view"); got != 97 {
		t.Errorf("story_elements_view = %d, want 97", got)
	}
}

func TestUpIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	runner := NewRunner()

	if _, err := runner.Up(context.Background(), db, 0); err != nil {
		t.Fatalf("first Up: %v", err)
	}
	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if applied != 0 {
		t.Fatalf("second Up applied %d migrations, want 0", applied)
	}
}

func TestSeedQuantities(t *testing.T) {
	db := openTestDB(t)
	runner := NewRunner()

	if _, err := runner.Up(context.Background(), db, 0); err != nil {
		t.Fatalf("Up: %v", err)
	}

	var total int
	err := db.QueryRow(`SELECT total_quantity FROM element_totals_view WHERE element_name = 'Brandmelder'`).Scan(&total)
	if err != nil {
		t.Fatalf("query element_totals_view: %v", err)
	}
	if total != 24 {
		t.Errorf("Brandmelder total = %d, want 24", total)
	}

	var stories int
	err = db.QueryRow(`SELECT COUNT(*) FROM story_elements_view WHERE element_name = 'Brandmelder'`).Scan(&stories)
	if err != nil {
		t.Fatalf("query story_elements_view: %v", err)
	}
	if stories != 3 {
		t.Errorf("Brandmelder appears on %d stories, want 3", stories)
	}

	var items int
	err = db.QueryRow(`SELECT total_items FROM story_summary_view WHERE story_code = 'EG'`).Scan(&items)
	if err != nil {
		t.Fatalf("query story_summary_view: %v", err)
	}
	if items == 0 {
		t.Error("EG total_items should be positive")
	}
}

func TestDownRollsBack(t *testing.T) {
	db := openTestDB(t)
	runner := NewRunner()

	if _, err := runner.Up(context.Background(), db, 0); err != nil {
		t.Fatalf("Up: %v", err)
	}
	rolled, err := runner.Down(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if rolled != 3 {
		t.Fatalf("rolled back %d migrations, want 3", rolled)
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'stories'`).Scan(&name)
	if err != sql.ErrNoRows {
		t.Fatalf("stories table should be gone, err = %v", err)
	}
}
