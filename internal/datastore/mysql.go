package datastore

import (
	"fmt"

	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/logger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func mysqlDSN(s conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	cfg := store.Settings.Database.MySQL
	dsn := mysqlDSN(cfg)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(store.Logger, DefaultSlowQueryThreshold),
	})
	if err != nil {
		store.Logger.Error("failed to open MySQL database",
			logger.String("host", cfg.Host),
			logger.Int("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open", "db_type", "mysql")
	}

	store.DB = db
	return performAutoMigration(db, store.Logger, "MySQL", fmt.Sprintf("mysql://%s:%s@%s:%d/%s", cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database))
}

// Close closes the MySQL database connection.
func (store *MySQLStore) Close() error {
	return store.closeDB()
}
