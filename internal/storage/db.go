// Package storage holds the relational persistence for imports: driver
// selection, the embedded schema, learned mapping memory and candidates.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// Supported database/sql driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Open connects with the named driver and pings the server.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer; SAVEPOINTs and the upsert need a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// DriverForURL picks a driver from a DATABASE_URL style string and returns
// the DSN to hand to it.
func DriverForURL(url string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url
	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite:")
	default:
		return DriverSQLite, url
	}
}

// quoteIdent double-quotes an identifier that has already been checked
// against the introspected column list.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
