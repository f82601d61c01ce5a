// Package database handles database connections and migrations.
package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"murmur/internal/config"
	"murmur/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteScheme = "sqlite://"

// IsSQLite reports whether the URL selects the SQLite driver.
func IsSQLite(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, sqliteScheme)
}

// Dialector picks the GORM driver for a DATABASE_URL. "sqlite://<path>" opens a
// SQLite file; anything else is handed to the PostgreSQL driver.
func Dialector(databaseURL string) gorm.Dialector {
	if IsSQLite(databaseURL) {
		dsn := strings.TrimPrefix(databaseURL, sqliteScheme)
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_foreign_keys=on"
		}
		return sqlite.Open(dsn)
	}
	return postgres.Open(databaseURL)
}

// Open connects using the given dialector and the slog-backed GORM logger.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewQueryLogger(middleware.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Connect opens the configured database, applies pool settings and migrates
// the schema when DB_AUTO_MIGRATE is set.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(Dialector(cfg.DatabaseURL))
	if err != nil {
		return nil, err
	}
	middleware.Logger.Info("Database connected successfully", slog.Bool("sqlite", IsSQLite(cfg.DatabaseURL)))

	if err := configurePool(db, IsSQLite(cfg.DatabaseURL)); err != nil {
		return nil, err
	}

	if cfg.DBAutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		middleware.Logger.Info("Database migration completed")
	}

	return db, nil
}

// Migrate creates or updates every persistent table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func configurePool(db *gorm.DB, sqliteDB bool) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if sqliteDB {
		// SQLite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
