// Package telemetry provides sinks for fire-and-forget orchestration events.
//
// It includes an in-memory sink for tests and development plus SQLite- and
// Postgres-backed sinks for deployments. Delivery is strictly best-effort:
// callers log failures and carry on, so a broken sink can never affect
// orchestration correctness.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

// Sink receives structured orchestration events.
type Sink interface {
	// Record stores one event.
	Record(ctx context.Context, ev models.TelemetryEvent) error
	// Close releases sink resources.
	Close() error
}

// Opts holds configuration options for building a sink.
type Opts struct {
	PostgresDSN string
	SQLiteDSN   string
}

// Option configures sink construction.
type Option func(*Opts)

// WithPostgresDSN configures a Postgres-backed sink.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// WithSQLiteDSN configures a SQLite-backed sink.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.SQLiteDSN = dsn }
}

// DetectDSNType classifies a database DSN as "postgres" or "sqlite".
// Postgres DSNs use the URL scheme or key=value connection-string form;
// anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewSink builds a sink from the provided options. With no DSN configured it
// returns an in-memory sink.
func NewSink(opts ...Option) (Sink, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.PostgresDSN != "":
		slog.Debug("Telemetry: building Postgres sink")
		return NewPostgresSink(cfg.PostgresDSN)
	case cfg.SQLiteDSN != "":
		slog.Debug("Telemetry: building SQLite sink", "path", cfg.SQLiteDSN)
		return NewSQLiteSink(cfg.SQLiteDSN)
	default:
		slog.Debug("Telemetry: no DSN configured, using in-memory sink")
		return NewInMemorySink(), nil
	}
}

// InMemorySink keeps events in memory. Used in tests and when no DSN is configured.
type InMemorySink struct {
	mu     sync.Mutex
	events []models.TelemetryEvent
}

// NewInMemorySink creates an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Record stores the event in memory.
func (s *InMemorySink) Record(ctx context.Context, ev models.TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of every recorded event.
func (s *InMemorySink) Events() []models.TelemetryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TelemetryEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Close is a no-op for the in-memory sink.
func (s *InMemorySink) Close() error { return nil }

// marshalDetail encodes the event detail map for storage, empty map as NULL.
func marshalDetail(detail map[string]string) (interface{}, error) {
	if len(detail) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event detail: %w", err)
	}
	return string(data), nil
}
