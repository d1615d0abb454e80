package storage

import (
	"context"
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the DDL for a driver.
func Schema(driver string) (string, error) {
	var name string
	switch driver {
	case DriverPostgres:
		name = "schema/postgres.sql"
	case DriverSQLite:
		name = "schema/sqlite.sql"
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(b), nil
}

// Migrate creates every table the service needs. Safe to run on each start.
func Migrate(ctx context.Context, db DB, driver string) error {
	ddl, err := Schema(driver)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return NewMappingMemory(db, driver, 0, 0).EnsureStore(ctx)
}
