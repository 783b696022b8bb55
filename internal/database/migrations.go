package database

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL DEFAULT 'work',
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		scheduled_time TIMESTAMPTZ,
		is_fixed_time BOOLEAN NOT NULL DEFAULT FALSE,
		deadline TIMESTAMPTZ,
		estimated_duration INTEGER,
		is_required BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_required_open ON tasks (is_required, is_completed, deadline)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL DEFAULT 'work',
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		scheduled_time TIMESTAMP,
		is_fixed_time BOOLEAN NOT NULL DEFAULT FALSE,
		deadline TIMESTAMP,
		estimated_duration INTEGER,
		is_required BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_required_open ON tasks (is_required, is_completed, deadline)`,
}

// Migrate creates the schema if it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if db.Dialect == DialectSQLite {
		statements = sqliteSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
