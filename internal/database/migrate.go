package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// getSchemaVersion returns the highest applied migration, 0 for a fresh database.
func getSchemaVersion(g *gorm.DB) (int, error) {
	var version int
	err := g.Model(&schemaMigration{}).Select("COALESCE(MAX(version), 0)").Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate brings the database schema up to the latest version.
// Applied versions are recorded in schema_migrations so the same
// bookkeeping works on sqlite, postgres and mysql.
func migrate(g *gorm.DB, log zerolog.Logger) error {
	if err := g.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	current, err := getSchemaVersion(g)
	if err != nil {
		return err
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Info().Int("version", m.Version).Str("description", m.Description).Msg("applying migration")

		err := g.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:     m.Version,
				Description: m.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}

	return nil
}
