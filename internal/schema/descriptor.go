// Package schema holds the static descriptor of the construction project
// dataset. The descriptor grounds prompt generation and backs the SQL
// validator's identifier checks; it never changes during a process lifetime.
package schema

import (
	"fmt"
	"strings"
)

type Column struct {
	Name        string
	Type        string
	Description string
}

type Table struct {
	Name        string
	Description string
	Columns     []Column
}

// View describes a read-only view. BackingQuery is a one-line summary of
// what the view joins or aggregates, not the full DDL.
type View struct {
	Name         string
	BackingQuery string
	Description  string
	Columns      []Column
}

type Descriptor struct {
	Tables     []Table
	Views      []View
	Categories []string
	StoryCodes []string

	identifiers map[string]struct{}
}

// Construction returns the descriptor for the fixed three-table schema and
// its views. Call once at startup and share the result.
func Construction() *Descriptor {
	d := &Descriptor{
		Tables: []Table{
			{
				Name:        "stories",
				Description: "building stories (floors), top floor first",
				Columns: []Column{
					{Name: "story_id", Type: "INTEGER", Description: "primary key"},
					{Name: "story_code", Type: "TEXT", Description: "short code: 2OG, 1OG, EG, 1UG"},
					{Name: "story_name", Type: "TEXT", Description: "German floor name, e.g. Erdgeschoss"},
					{Name: "floor_level", Type: "INTEGER", Description: "level relative to ground (EG = 0, basement negative)"},
					{Name: "description", Type: "TEXT", Description: "free-text note"},
				},
			},
			{
				Name:        "elements",
				Description: "construction elements and materials",
				Columns: []Column{
					{Name: "element_id", Type: "INTEGER", Description: "primary key"},
					{Name: "element_code", Type: "TEXT", Description: "unique code, e.g. BM001"},
					{Name: "element_name", Type: "TEXT", Description: "German element name, e.g. Brandmelder"},
					{Name: "category", Type: "TEXT", Description: "element category, e.g. Brandschutz, Elektro"},
					{Name: "unit", Type: "TEXT", Description: "counting unit: Stück, qm, Meter"},
					{Name: "description", Type: "TEXT", Description: "free-text note"},
				},
			},
			{
				Name:        "story_elements",
				Description: "quantities of each element per story",
				Columns: []Column{
					{Name: "id", Type: "INTEGER", Description: "primary key"},
					{Name: "story_id", Type: "INTEGER", Description: "references stories"},
					{Name: "element_id", Type: "INTEGER", Description: "references elements"},
					{Name: "quantity", Type: "INTEGER", Description: "installed quantity"},
					{Name: "notes", Type: "TEXT", Description: "free-text note"},
				},
			},
		},
		Views: []View{
			{
				Name:         "story_elements_view",
				BackingQuery: "story_elements joined with stories and elements",
				Description:  "complete overview: which element appears on which story in what quantity",
				Columns: []Column{
					{Name: "story_code", Type: "TEXT"},
					{Name: "story_name", Type: "TEXT"},
					{Name: "element_code", Type: "TEXT"},
					{Name: "element_name", Type: "TEXT"},
					{Name: "category", Type: "TEXT"},
					{Name: "quantity", Type: "INTEGER"},
					{Name: "unit", Type: "TEXT"},
					{Name: "notes", Type: "TEXT"},
				},
			},
			{
				Name:         "element_totals_view",
				BackingQuery: "elements left-joined with story_elements, grouped by element",
				Description:  "total quantity of each element across all stories",
				Columns: []Column{
					{Name: "element_code", Type: "TEXT"},
					{Name: "element_name", Type: "TEXT"},
					{Name: "category", Type: "TEXT"},
					{Name: "unit", Type: "TEXT"},
					{Name: "total_quantity", Type: "INTEGER"},
				},
			},
			{
				Name:         "story_summary_view",
				BackingQuery: "stories left-joined with story_elements, grouped by story",
				Description:  "per-story element count and total item count",
				Columns: []Column{
					{Name: "story_code", Type: "TEXT"},
					{Name: "story_name", Type: "TEXT"},
					{Name: "element_count", Type: "INTEGER"},
					{Name: "total_items", Type: "INTEGER"},
				},
			},
		},
		Categories: []string{
			"Beleuchtung", "Bodenbelag", "Brandschutz", "Dämmung", "Elektro",
			"Fenster", "Heizung", "Lüftung", "Sanitär", "Sonstiges", "Türen",
		},
		StoryCodes: []string{"2OG", "1OG", "EG", "1UG"},
	}
	d.indexIdentifiers()
	return d
}

func (d *Descriptor) indexIdentifiers() {
	d.identifiers = make(map[string]struct{})
	add := func(name string) {
		d.identifiers[strings.ToLower(name)] = struct{}{}
	}
	for _, table := range d.Tables {
		add(table.Name)
		for _, column := range table.Columns {
			add(column.Name)
		}
	}
	for _, view := range d.Views {
		add(view.Name)
		for _, column := range view.Columns {
			add(column.Name)
		}
	}
}

// KnownIdentifier reports whether name is a table, view, or column of the
// dataset. The check is case-insensitive, matching SQLite's resolution.
func (d *Descriptor) KnownIdentifier(name string) bool {
	_, ok := d.identifiers[strings.ToLower(name)]
	return ok
}

func (d *Descriptor) HasTable(name string) bool {
	lowered := strings.ToLower(name)
	for _, table := range d.Tables {
		if strings.ToLower(table.Name) == lowered {
			return true
		}
	}
	for _, view := range d.Views {
		if strings.ToLower(view.Name) == lowered {
			return true
		}
	}
	return false
}

// Render produces the schema grounding text embedded in model prompts:
// exact table/column identifiers with types and one-line descriptions,
// followed by the views and the category and story-code enumerations.
func (d *Descriptor) Render() string {
	var b strings.Builder
	for _, table := range d.Tables {
		fmt.Fprintf(&b, "TABLE %s -- %s\n", table.Name, table.Description)
		for _, column := range table.Columns {
			fmt.Fprintf(&b, "  %s %s -- %s\n", column.Name, column.Type, column.Description)
		}
	}
	for _, view := range d.Views {
		fmt.Fprintf(&b, "VIEW %s (%s) -- %s\n", view.Name, view.BackingQuery, view.Description)
		names := make([]string, 0, len(view.Columns))
		for _, column := range view.Columns {
			names = append(names, column.Name)
		}
		fmt.Fprintf(&b, "  columns: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Element categories: %s\n", strings.Join(d.Categories, ", "))
	fmt.Fprintf(&b, "Story codes (top to bottom): %s\n", strings.Join(d.StoryCodes, ", "))
	return b.String()
}
