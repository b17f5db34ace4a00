package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
)

const driverName = "sqlite"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		owner_id INTEGER NOT NULL REFERENCES users(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);`,
	`CREATE TABLE IF NOT EXISTS user_tokens (
		user_id INTEGER PRIMARY KEY REFERENCES users(id),
		token TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);`,
}

// Open connects to the SQLite database at path and verifies it answers.
// SQLite allows one writer at a time, so the pool is held to a single
// connection; this also keeps ":memory:" databases alive across calls.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	pool, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(0)

	backoff := retry.WithMaxRetries(5, retry.NewExponential(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.PingContext(ctx); err != nil {
			slog.WarnContext(ctx, "Database ping failed, retrying", "database.path", path, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to reach database %s: %w", path, err)
	}

	slog.InfoContext(ctx, "Connected to database", "database.path", path)
	return pool, nil
}

// Migrate enables foreign keys and creates the schema if it is missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	slog.InfoContext(ctx, "Database schema verified")
	return nil
}

// OpenAndMigrate is Open followed by Migrate.
func OpenAndMigrate(ctx context.Context, path string) (*sqlx.DB, error) {
	pool, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}
