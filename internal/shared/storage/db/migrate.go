package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrSchemaMissing means the blobs table has not been created yet.
var ErrSchemaMissing = errors.New("blobs table missing; run cmd/migrate")

// RunMigrations applies the embedded schema for the postgres blob store.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, database, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// CheckSchema fails with ErrSchemaMissing when the blobs table is absent.
func CheckSchema(ctx context.Context, database *sql.DB) error {
	var present bool
	if err := database.QueryRowContext(ctx, `SELECT to_regclass('blobs') IS NOT NULL`).Scan(&present); err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}

// PrepareSchema migrates when migrate is set and otherwise only verifies
// that a previous migration created the table.
func PrepareSchema(ctx context.Context, database *sql.DB, migrate bool) error {
	if migrate {
		return RunMigrations(ctx, database)
	}
	return CheckSchema(ctx, database)
}
