package database

import "gorm.io/gorm"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *gorm.DB) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "observations table",
		Up: func(tx *gorm.DB) error {
			m := tx.Migrator()
			if m.HasTable(&Observation{}) {
				return nil
			}
			return m.CreateTable(&Observation{})
		},
	},
	{
		Version:     2,
		Description: "search analytics tables",
		Up: func(tx *gorm.DB) error {
			m := tx.Migrator()
			for _, model := range []any{&SearchLog{}, &SkippedQuestion{}} {
				if m.HasTable(model) {
					continue
				}
				if err := m.CreateTable(model); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "commune lookup index",
		Up: func(tx *gorm.DB) error {
			m := tx.Migrator()
			if m.HasIndex(&Observation{}, "idx_observations_commune_species") {
				return nil
			}
			return tx.Exec("CREATE INDEX idx_observations_commune_species ON observations (commune, scientific_name)").Error
		},
	},
	{
		Version:     4,
		Description: "case-folded match columns",
		Up: func(tx *gorm.DB) error {
			m := tx.Migrator()
			for _, col := range foldColumns {
				if m.HasColumn(&Observation{}, string(col)) {
					continue
				}
				if err := m.AddColumn(&Observation{}, string(col)); err != nil {
					return err
				}
			}
			return backfillFolds(tx)
		},
	},
}

// backfillFolds recomputes the folded columns of rows written before they
// existed.
func backfillFolds(tx *gorm.DB) error {
	var batch []Observation
	w := tx.Session(&gorm.Session{NewDB: true})
	return tx.Model(&Observation{}).FindInBatches(&batch, insertBatchSize, func(*gorm.DB, int) error {
		for i := range batch {
			batch[i].fillFolds()
			o := batch[i]
			err := w.Model(&Observation{}).Where("id = ?", o.ID).UpdateColumns(map[string]any{
				"kingdom_fold":         o.KingdomFold,
				"simple_group_fold":    o.SimpleGroupFold,
				"commune_fold":         o.CommuneFold,
				"vernacular_name_fold": o.VernacularNameFold,
				"status_code_fold":     o.StatusCodeFold,
			}).Error
			if err != nil {
				return err
			}
		}
		return nil
	}).Error
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
