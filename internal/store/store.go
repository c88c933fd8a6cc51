package store

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config selects the database driver and its DSN.
type Config struct {
	Driver string // "mysql" or "sqlite"
	DSN    string // driver-specific connection string
}

// DefaultConfig returns a local SQLite database, the zero-setup default.
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		DSN:    "deteksi.db",
	}
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// WAL keeps readers unblocked while the batch runner writes.
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			slog.Warn("Failed to enable WAL mode", "error", err)
		}
		sqlDB, err := db.DB()
		if err == nil {
			// SQLite serializes writers; one connection avoids lock errors.
			sqlDB.SetMaxOpenConns(1)
			sqlDB.SetConnMaxLifetime(time.Hour)
		}
	}

	if err := db.AutoMigrate(&MeterRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	slog.Info("Database ready", "driver", cfg.Driver)
	return db, nil
}
