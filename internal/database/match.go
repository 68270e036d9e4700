package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Column names an observation column that filters and groupings may reference.
type Column string

const (
	ColScientificName Column = "scientific_name"
	ColVernacularName Column = "vernacular_name"
	ColKingdom        Column = "kingdom"
	ColSimpleGroup    Column = "simple_group"
	ColAdvancedGroup  Column = "advanced_group"
	ColDepartment     Column = "department_code"
	ColCommune        Column = "commune"
	ColStatus         Column = "status_code"
)

// Op is a clause comparison.
type Op string

const (
	OpEqualFold    Op = "equals_ci"
	OpPrefixFold   Op = "prefix_ci"
	OpContainsFold Op = "contains_ci"
	OpEquals       Op = "equals"
)

// Clause is one constraint of a MatchSpec.
type Clause struct {
	Column Column `json:"field"`
	Op     Op     `json:"op"`
	Value  any    `json:"value"`
}

// MatchSpec is a conjunction of clauses over observation rows.
// The zero value matches everything.
type MatchSpec struct {
	Clauses []Clause `json:"clauses"`
}

// Empty reports whether the spec carries no constraint.
func (m MatchSpec) Empty() bool {
	return len(m.Clauses) == 0
}

// Has reports whether the spec constrains the column.
func (m MatchSpec) Has(col Column) bool {
	for _, c := range m.Clauses {
		if c.Column == col {
			return true
		}
	}
	return false
}

// likeEscaper escapes LIKE wildcards so user input matches literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// apply adds the spec's WHERE conditions to q.
// Case-insensitive clauses compare the folded input against the folded
// shadow column of foldColumns.
func (m MatchSpec) apply(q *gorm.DB) (*gorm.DB, error) {
	for _, c := range m.Clauses {
		switch c.Op {
		case OpEquals:
			q = q.Where(fmt.Sprintf("%s = ?", c.Column), c.Value)
		case OpEqualFold, OpPrefixFold, OpContainsFold:
			s, ok := c.Value.(string)
			if !ok {
				return nil, fmt.Errorf("clause %s %s: expected string value, got %T", c.Column, c.Op, c.Value)
			}
			col, ok := foldColumns[c.Column]
			if !ok {
				return nil, fmt.Errorf("clause %s %s: column has no folded form", c.Column, c.Op)
			}
			folded := Fold(s)
			switch c.Op {
			case OpEqualFold:
				q = q.Where(fmt.Sprintf("%s = ?", col), folded)
			case OpPrefixFold:
				q = q.Where(fmt.Sprintf("%s LIKE ? ESCAPE '!'", col), likeEscaper.Replace(folded)+"%")
			case OpContainsFold:
				q = q.Where(fmt.Sprintf("%s LIKE ? ESCAPE '!'", col), "%"+likeEscaper.Replace(folded)+"%")
			}
		default:
			return nil, fmt.Errorf("clause %s: unknown op %q", c.Column, c.Op)
		}
	}
	return q, nil
}
