package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all tables and indexes. It is idempotent.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return createSessionsTable(ctx, db)
}

func createSessionsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		chat_id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL DEFAULT '',
		welcomed INTEGER NOT NULL DEFAULT 0 CHECK(welcomed IN (0, 1)),
		awaiting_name INTEGER NOT NULL DEFAULT 0 CHECK(awaiting_name IN (0, 1)),
		updated_at INTEGER NOT NULL,
		CHECK(welcomed = 0 OR user_name <> '')
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	return nil
}
