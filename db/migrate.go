package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// getMigrationsPath locates the db/migrations directory across the execution
// contexts we run in (repo root, package dir, container workdir).
func getMigrationsPath() (string, error) {
	candidates := []string{
		"db/migrations",
		"migrations",
		"./db/migrations",
		"./migrations",
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			abs, err := filepath.Abs(path)
			if err != nil {
				return "", fmt.Errorf("absolute path for %s: %w", path, err)
			}
			return "file://" + abs, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found (looked in %v)", candidates)
}

// RunMigrations applies versioned migrations from db/migrations using
// golang-migrate. Idempotent; safe to run on every startup.
func RunMigrations(dbx *sql.DB) error {
	src, err := getMigrationsPath()
	if err != nil {
		return err
	}
	driver, err := postgres.WithInstance(dbx, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema directly. Fallback path for deployments
// without the migrations directory on disk; every statement is idempotent.
func Migrate(ctx context.Context, dbx *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS channel_settings (
			channel TEXT PRIMARY KEY,
			command_prefixes TEXT NOT NULL DEFAULT '!wingman',
			mention_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			mention_name TEXT NOT NULL DEFAULT '',
			rate_limit_window_ms BIGINT NOT NULL DEFAULT 60000,
			max_messages_per_window INT NOT NULL DEFAULT 5,
			response_style TEXT NOT NULL DEFAULT 'mention',
			mention_first_only BOOLEAN NOT NULL DEFAULT TRUE,
			max_message_length INT NOT NULL DEFAULT 500,
			cache_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			cache_ttl_ms BIGINT NOT NULL DEFAULT 300000,
			custom_system_message TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS violations (
			id BIGSERIAL PRIMARY KEY,
			channel TEXT NOT NULL,
			user_id TEXT NOT NULL,
			offending_words TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT 'warning',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_user ON violations (channel, user_id)`,
		`CREATE TABLE IF NOT EXISTS channel_counters (
			channel TEXT PRIMARY KEY,
			message_count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS analytics_events (
			id BIGSERIAL PRIMARY KEY,
			channel TEXT NOT NULL,
			user_id TEXT NOT NULL,
			message_type TEXT NOT NULL,
			processing_ms BIGINT NOT NULL DEFAULT 0,
			generation_ms BIGINT NOT NULL DEFAULT 0,
			total_ms BIGINT NOT NULL DEFAULT 0,
			cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
			success BOOLEAN NOT NULL DEFAULT TRUE,
			error_type TEXT NOT NULL DEFAULT '',
			flagged BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_channel_time ON analytics_events (channel, created_at)`,
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			provider TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ NOT NULL,
			scope TEXT NOT NULL DEFAULT '',
			encryption_version INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, s := range stmts {
		if _, err := dbx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	slog.Info("embedded schema migration applied", slog.String("component", "db_migrate"))
	return nil
}
