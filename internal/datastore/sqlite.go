package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteParams enables WAL, waits on a locked database instead of failing,
// and turns on foreign keys for every pooled connection.
const sqliteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Database.SQLite.Path == "" {
		return errors.Newf("sqlite path is not configured").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Database.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_dir").
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path+sqliteParams), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(store.Logger, DefaultSlowQueryThreshold),
	})
	if err != nil {
		store.Logger.Error("failed to open SQLite database", logger.String("path", path), logger.Error(err))
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open", "db_type", "sqlite")
	}

	// A single connection serializes writers and avoids SQLITE_BUSY between pooled connections.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	return performAutoMigration(db, store.Logger, "SQLite", path)
}

// Close closes the SQLite database connection.
func (store *SQLiteStore) Close() error {
	return store.closeDB()
}
