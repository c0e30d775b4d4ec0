package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed schema.sql
var schema string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	log.Println("Running database migrations...")

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}
