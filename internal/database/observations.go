package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

const insertBatchSize = 500

// InsertObservations bulk-inserts observation rows.
// With replace set, existing rows are deleted in the same transaction.
func (db *DB) InsertObservations(ctx context.Context, rows []Observation, replace bool) error {
	return db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Observation{}).Error; err != nil {
				return fmt.Errorf("clearing observations: %w", err)
			}
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("inserting observations: %w", err)
		}
		return nil
	})
}

// CountObservations returns the number of observation rows.
func (db *DB) CountObservations(ctx context.Context) (int64, error) {
	var n int64
	if err := db.gorm.WithContext(ctx).Model(&Observation{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting observations: %w", err)
	}
	return n, nil
}

// GetStats returns aggregate counts across the database.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	g := db.gorm.WithContext(ctx)

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&s.Observations, g.Model(&Observation{})},
		{&s.Species, g.Model(&Observation{}).Distinct(string(ColScientificName))},
		{&s.Communes, g.Model(&Observation{}).Distinct(string(ColCommune))},
		{&s.Departments, g.Model(&Observation{}).Distinct(string(ColDepartment))},
		{&s.SearchLogs, g.Model(&SearchLog{})},
		{&s.SkippedQuestions, g.Model(&SkippedQuestion{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}
	}
	return s, nil
}
