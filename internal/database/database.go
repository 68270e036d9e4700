package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/TobiSchelling/GuideNaturel/internal/logger"
)

// DB wraps the observation database connection.
type DB struct {
	gorm   *gorm.DB
	driver string
	path   string
	log    zerolog.Logger
}

// Options selects the database backend.
type Options struct {
	// Driver is sqlite, postgres or mysql.
	Driver string
	// DSN is the file path for sqlite and the connection string otherwise.
	DSN           string
	Logger        zerolog.Logger
	SlowThreshold time.Duration
}

// Open creates or opens the database and brings its schema up to date.
func Open(opts Options) (*DB, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormAdapter(logger.Component(opts.Logger, "database"), opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{gorm: g, driver: opts.Driver, path: opts.DSN, log: opts.Logger}

	if err := migrate(g, db.log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return db, nil
}

// OpenSQLite opens a sqlite database file with a silent logger.
func OpenSQLite(path string) (*DB, error) {
	return Open(Options{Driver: "sqlite", DSN: path, Logger: zerolog.Nop()})
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case "", "sqlite":
		dir := filepath.Dir(opts.DSN)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		// modernc.org/sqlite registers the pure-Go "sqlite" driver.
		return sqlite.New(sqlite.Config{
			DriverName: "sqlite",
			DSN:        opts.DSN + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		}), nil
	case "postgres":
		return postgres.Open(opts.DSN), nil
	case "mysql":
		return mysql.Open(opts.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path returns the database file path (sqlite) or DSN.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the configured backend name.
func (db *DB) Driver() string {
	return db.driver
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
