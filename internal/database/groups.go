package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// GroupSpec describes a species count broken down by one or more dimensions.
type GroupSpec struct {
	// Dimensions are the columns to break down by, e.g. kingdom then status.
	Dimensions []Column
	// PerDepartment counts a species once per department instead of once overall.
	PerDepartment bool
	// Departments restricts rows to these department codes; nil means all.
	Departments []int
}

// GroupCount is the number of distinct species for one dimension tuple.
// Values holds one entry per dimension; a missing value is "".
type GroupCount struct {
	Values     []string
	Department int
	Species    int64
}

// CountSpeciesBy deduplicates rows to one per species (per department when
// requested), keeping the smallest value of each dimension, then counts
// species for every dimension tuple.
func (db *DB) CountSpeciesBy(ctx context.Context, spec GroupSpec) ([]GroupCount, error) {
	if len(spec.Dimensions) == 0 {
		return nil, fmt.Errorf("group spec needs at least one dimension")
	}

	speciesKey := []string{string(ColScientificName)}
	if spec.PerDepartment {
		speciesKey = append(speciesKey, string(ColDepartment))
	}

	innerCols := append([]string{}, speciesKey...)
	outerCols := make([]string, 0, len(spec.Dimensions)+1)
	for i, dim := range spec.Dimensions {
		alias := fmt.Sprintf("dim%d", i)
		innerCols = append(innerCols, fmt.Sprintf("MIN(%s) AS %s", dim, alias))
		outerCols = append(outerCols, alias)
	}
	if spec.PerDepartment {
		outerCols = append(outerCols, string(ColDepartment))
	}

	inner := db.gorm.WithContext(ctx).Model(&Observation{}).
		Select(strings.Join(innerCols, ", ")).
		Group(strings.Join(speciesKey, ", "))
	if spec.Departments != nil {
		inner = inner.Where(string(ColDepartment)+" IN ?", spec.Departments)
	}

	rows, err := db.gorm.WithContext(ctx).
		Table("(?) AS species", inner).
		Select(strings.Join(outerCols, ", ") + ", COUNT(*) AS species_count").
		Group(strings.Join(outerCols, ", ")).
		Order(strings.Join(outerCols, ", ")).
		Rows()
	if err != nil {
		return nil, fmt.Errorf("grouping species: %w", err)
	}
	defer rows.Close()

	var out []GroupCount
	for rows.Next() {
		values := make([]sql.NullString, len(spec.Dimensions))
		var dep sql.NullInt64
		var count int64

		dest := make([]any, 0, len(values)+2)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if spec.PerDepartment {
			dest = append(dest, &dep)
		}
		dest = append(dest, &count)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning species group: %w", err)
		}

		gc := GroupCount{Values: make([]string, len(values)), Department: int(dep.Int64), Species: count}
		for i, v := range values {
			gc.Values[i] = v.String
		}
		out = append(out, gc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating species groups: %w", err)
	}
	return out, nil
}
