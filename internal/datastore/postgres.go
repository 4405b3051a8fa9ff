package datastore

import (
	"fmt"

	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore implements DataStore for PostgreSQL
type PostgresStore struct {
	DataStore
	Settings *conf.Settings
}

func postgresDSN(s conf.PostgresSettings) string {
	sslmode := s.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		s.Host, s.Port, s.Username, s.Password, s.Database, sslmode)
}

// Open sets up the PostgreSQL database connection and migrates the schema.
func (store *PostgresStore) Open() error {
	cfg := store.Settings.Database.Postgres
	dsn := postgresDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(store.Logger, DefaultSlowQueryThreshold),
	})
	if err != nil {
		store.Logger.Error("failed to open PostgreSQL database",
			logger.String("host", cfg.Host),
			logger.Int("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open PostgreSQL database: %w", err), "open", "db_type", "postgres")
	}

	store.DB = db
	return performAutoMigration(db, store.Logger, "PostgreSQL", fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database))
}

// Close closes the PostgreSQL database connection.
func (store *PostgresStore) Close() error {
	return store.closeDB()
}
