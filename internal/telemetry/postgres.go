// Package telemetry: Postgres-backed event sink.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/MossHollow/InterludeEngine/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresSink stores telemetry events in a PostgreSQL database.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink connects to the database described by the DSN and applies migrations.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	if dsn == "" {
		slog.Error("PostgresSink DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres telemetry sink ready")
	return &PostgresSink{db: db}, nil
}

// Record inserts one event.
func (s *PostgresSink) Record(ctx context.Context, ev models.TelemetryEvent) error {
	detail, err := marshalDetail(ev.Detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO telemetry_events (name, session_id, elapsed_ms, detail, time) VALUES ($1, $2, $3, $4, $5)`,
		ev.Name, ev.SessionID, ev.ElapsedMS, detail, ev.Time)
	if err != nil {
		slog.Error("PostgresSink Record failed", "error", err, "event", ev.Name)
		return fmt.Errorf("failed to insert telemetry event %s: %w", ev.Name, err)
	}
	slog.Debug("PostgresSink Record succeeded", "event", ev.Name, "sessionID", ev.SessionID)
	return nil
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
