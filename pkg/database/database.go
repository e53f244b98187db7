// Package database provides database connection and migration management
// for the SQL journal store. It supports both PostgreSQL and SQLite backends.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Driver names as registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB represents a database connection with migration support.
type DB struct {
	*sql.DB
	driver   string
	mu       sync.Mutex
	migrated bool
}

// Config holds database configuration.
type Config struct {
	Driver   string `json:"driver" yaml:"driver"`     // "postgres" or "sqlite"
	URL      string `json:"url" yaml:"url"`           // Full connection string, wins over the fields below
	Host     string `json:"host" yaml:"host"`         // PostgreSQL host
	Port     int    `json:"port" yaml:"port"`         // PostgreSQL port
	Database string `json:"database" yaml:"database"` // Database name or SQLite file path
	User     string `json:"user" yaml:"user"`         // PostgreSQL user
	Password string `json:"password" yaml:"password"` // PostgreSQL password
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"` // PostgreSQL SSL mode
}

// DriverName maps a configured driver to the database/sql driver name.
func DriverName(driver string) (string, error) {
	switch driver {
	case "postgres", "postgresql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3", "":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// DSN returns the connection string for cfg.
func (cfg *Config) DSN() (string, error) {
	driver, err := DriverName(cfg.Driver)
	if err != nil {
		return "", err
	}
	if cfg.URL != "" {
		return cfg.URL, nil
	}

	if driver == DriverSQLite {
		if cfg.Database == "" {
			return "voicejournal.db", nil
		}
		return cfg.Database, nil
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode,
	), nil
}

// New creates a new database connection.
func New(ctx context.Context, cfg *Config) (*DB, error) {
	driver, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	connStr, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// SQLite serializes writers, and each :memory: connection is its own database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     db,
		driver: driver,
	}, nil
}

// Driver returns the database/sql driver name.
func (d *DB) Driver() string {
	return d.driver
}

// Migrate runs all pending database migrations using goose.
func (d *DB) Migrate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.migrated {
		return nil
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	dialect, dir := "postgres", "migrations/postgres"
	if d.driver == DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, d.DB, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.migrated = true
	return nil
}

// Version reports the current goose schema version.
func (d *DB) Version(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dialect := "postgres"
	if d.driver == DriverSQLite {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, d.DB)
}
