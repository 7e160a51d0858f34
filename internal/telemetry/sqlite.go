// Package telemetry: SQLite-backed event sink.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/MossHollow/InterludeEngine/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteSink stores telemetry events in a SQLite database file.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (and if needed creates) the database at the given file
// path and applies migrations.
func NewSQLiteSink(dsn string) (*SQLiteSink, error) {
	if dsn == "" {
		slog.Error("SQLiteSink DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite telemetry sink ready", "path", dsn)
	return &SQLiteSink{db: db}, nil
}

// Record inserts one event.
func (s *SQLiteSink) Record(ctx context.Context, ev models.TelemetryEvent) error {
	detail, err := marshalDetail(ev.Detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO telemetry_events (name, session_id, elapsed_ms, detail, time) VALUES (?, ?, ?, ?, ?)`,
		ev.Name, ev.SessionID, ev.ElapsedMS, detail, ev.Time)
	if err != nil {
		slog.Error("SQLiteSink Record failed", "error", err, "event", ev.Name)
		return fmt.Errorf("failed to insert telemetry event %s: %w", ev.Name, err)
	}
	slog.Debug("SQLiteSink Record succeeded", "event", ev.Name, "sessionID", ev.SessionID)
	return nil
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
