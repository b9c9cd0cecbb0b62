package nlq

import (
	"strings"
	"testing"

	"github.com/bauquery/bauquery/internal/schema"
)

func TestValidateSQLAcceptsSelects(t *testing.T) {
	descriptor := schema.Construction()

	statements := []string{
		"SELECT * FROM stories",
		"SELECT element_name, total_quantity FROM element_totals_view ORDER BY total_quantity DESC",
		"select s.story_name, sum(se.quantity) as total from story_elements se join stories s on s.story_id = se.story_id group by s.story_name",
		"WITH totals AS (SELECT element_id, SUM(quantity) AS total FROM story_elements GROUP BY element_id) SELECT * FROM totals",
		"SELECT element_name FROM elements WHERE element_name LIKE '%Brandschutztür%'",
	}
	for _, stmt := range statements {
		if _, err := ValidateSQL(descriptor, stmt, 500); err != nil {
			t.Errorf("ValidateSQL(%q) = %v, want nil", stmt, err)
		}
	}
}

func TestValidateSQLRejectsWrites(t *testing.T) {
	descriptor := schema.Construction()

	statements := []string{
		"DROP TABLE elements",
		"DELETE FROM stories",
		"INSERT INTO stories VALUES ('x', 'y', 'z', 0)",
		"UPDATE elements SET category = 'x'",
		"CREATE TABLE sneaky (id INTEGER)",
		"PRAGMA schema_version",
		"SELECT * FROM stories; DROP TABLE elements",
	}
	for _, stmt := range statements {
		_, err := ValidateSQL(descriptor, stmt, 500)
		if err == nil {
			t.Errorf("ValidateSQL(%q) accepted a non-SELECT statement", stmt)
			continue
		}
		if KindOf(err) != KindUnsafeQuery {
			t.Errorf("ValidateSQL(%q) kind = %v, want %v", stmt, KindOf(err), KindUnsafeQuery)
		}
	}
}

func TestValidateSQLRejectsComments(t *testing.T) {
	descriptor := schema.Construction()

	for _, stmt := range []string{
		"SELECT * FROM stories -- sneaky",
		"SELECT /* hidden */ * FROM stories",
	} {
		_, err := ValidateSQL(descriptor, stmt, 500)
		if KindOf(err) != KindUnsafeQuery {
			t.Errorf("ValidateSQL(%q) kind = %v, want %v", stmt, KindOf(err), KindUnsafeQuery)
		}
	}
}

func TestValidateSQLRejectsUnknownIdentifiers(t *testing.T) {
	descriptor := schema.Construction()

	cases := map[string]string{
		"SELECT price FROM elements":    "price",
		"SELECT * FROM users":           "users",
		"SELECT e.cost FROM elements e": "cost",
	}
	for stmt, want := range cases {
		_, err := ValidateSQL(descriptor, stmt, 500)
		if err == nil {
			t.Errorf("ValidateSQL(%q) accepted an unknown identifier", stmt)
			continue
		}
		if KindOf(err) != KindUnknownSchemaReference {
			t.Errorf("ValidateSQL(%q) kind = %v, want %v", stmt, KindOf(err), KindUnknownSchemaReference)
		}
		if !strings.Contains(err.Error(), want) {
			t.Errorf("ValidateSQL(%q) error %q does not name %q", stmt, err, want)
		}
	}
}

func TestValidateSQLKeywordInsideLiteralIsAllowed(t *testing.T) {
	descriptor := schema.Construction()

	validated, err := ValidateSQL(descriptor, "SELECT * FROM elements WHERE element_name = 'drop zone insert'", 500)
	if err != nil {
		t.Fatalf("ValidateSQL: %v", err)
	}
	if !strings.Contains(validated, "'drop zone insert'") {
		t.Fatalf("literal was altered: %q", validated)
	}
}

func TestValidateSQLInjectsRowLimit(t *testing.T) {
	descriptor := schema.Construction()

	validated, err := ValidateSQL(descriptor, "SELECT * FROM stories", 500)
	if err != nil {
		t.Fatalf("ValidateSQL: %v", err)
	}
	if !strings.HasSuffix(validated, "LIMIT 500") {
		t.Fatalf("missing injected limit: %q", validated)
	}
}

func TestValidateSQLLimitInjectionIsIdempotent(t *testing.T) {
	descriptor := schema.Construction()

	validated, err := ValidateSQL(descriptor, "SELECT * FROM stories LIMIT 10", 500)
	if err != nil {
		t.Fatalf("ValidateSQL: %v", err)
	}
	if strings.Count(strings.ToLower(validated), "limit") != 1 {
		t.Fatalf("limit injected twice: %q", validated)
	}

	again, err := ValidateSQL(descriptor, validated, 500)
	if err != nil {
		t.Fatalf("ValidateSQL second pass: %v", err)
	}
	if strings.Count(strings.ToLower(again), "limit") != 1 {
		t.Fatalf("revalidation stacked limits: %q", again)
	}
}

func TestValidateSQLStripsTrailingSemicolon(t *testing.T) {
	descriptor := schema.Construction()

	validated, err := ValidateSQL(descriptor, "SELECT * FROM stories;", 500)
	if err != nil {
		t.Fatalf("ValidateSQL: %v", err)
	}
	if strings.Contains(validated, ";") {
		t.Fatalf("semicolon survived validation: %q", validated)
	}
}
