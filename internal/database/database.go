package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/weighttracker/weighttracker/internal/config"
	_ "modernc.org/sqlite"
)

func init() {
	// sqlx only knows the cgo driver name "sqlite3"
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// DB wraps the SQL connection together with the dialect it speaks.
// Queries are written with ? placeholders and rebound per driver.
type DB struct {
	*sqlx.DB
	Driver string
}

// Open connects to the configured datastore
func Open(cfg config.DatabaseConfig) (*DB, error) {
	if cfg.Driver == config.DriverSQLite && cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// one writer on the device; this also serializes every store operation
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(max(cfg.MaxConnections/4, 1))
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(30 * time.Minute)
	}

	d := &DB{DB: db, Driver: cfg.Driver}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.HealthCheck(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return d, nil
}

// New wraps an already opened *sql.DB, used by tests
func New(db *sql.DB, driver string) *DB {
	return &DB{DB: sqlx.NewDb(db, driver), Driver: driver}
}

// HealthCheck verifies the database connection is healthy
func (d *DB) HealthCheck(ctx context.Context) error {
	return d.PingContext(ctx)
}
