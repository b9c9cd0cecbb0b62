package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// DatasetInfo summarizes the fixed project dataset for the info endpoint.
type DatasetInfo struct {
	Stories       int `json:"stories"`
	Elements      int `json:"elements"`
	Categories    int `json:"categories"`
	Relationships int `json:"relationships"`
	TotalItems    int `json:"total_items"`
}

// Info reads dataset counts. Run once at startup; the dataset is immutable
// while the service is up.
func Info(ctx context.Context, db *sql.DB) (DatasetInfo, error) {
	var info DatasetInfo
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM stories", &info.Stories},
		{"SELECT COUNT(*) FROM elements", &info.Elements},
		{"SELECT COUNT(DISTINCT category) FROM elements", &info.Categories},
		{"SELECT COUNT(*) FROM story_elements", &info.Relationships},
		{"SELECT COALESCE(SUM(quantity), 0) FROM story_elements", &info.TotalItems},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return DatasetInfo{}, fmt.Errorf("dataset info query %q: %w", c.query, err)
		}
	}
	return info, nil
}
