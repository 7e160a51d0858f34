// Package api provides HTTP handlers and the main API server logic for the
// interlude engine.
//
// It exposes RESTful endpoints for starting, observing, skipping, and tearing
// down orchestration sessions, plus a server-sent-events stream per session.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/copygen"
	"github.com/MossHollow/InterludeEngine/internal/enrichment"
	"github.com/MossHollow/InterludeEngine/internal/orchestration"
	"github.com/MossHollow/InterludeEngine/internal/scheduler"
	"github.com/MossHollow/InterludeEngine/internal/session"
	"github.com/MossHollow/InterludeEngine/internal/telemetry"
)

// Default configuration constants
const (
	// DefaultAddr is the default API server listen address.
	DefaultAddr = ":8080"
	// DefaultJanitorCron sweeps terminal sessions every five minutes.
	DefaultJanitorCron = "*/5 * * * *"
	// DefaultSessionRetention is how long a terminal session stays queryable
	// before the janitor removes it.
	DefaultSessionRetention = 30 * time.Minute
	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr             string
	JanitorCron      string
	SessionRetention time.Duration
	Orchestration    orchestration.Config
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithJanitorCron sets the cron expression for the terminal-session sweep.
func WithJanitorCron(expr string) Option {
	return func(o *Opts) { o.JanitorCron = expr }
}

// WithSessionRetention sets how long terminal sessions remain queryable.
func WithSessionRetention(d time.Duration) Option {
	return func(o *Opts) { o.SessionRetention = d }
}

// WithOrchestrationConfig overrides the orchestration timing configuration.
func WithOrchestrationConfig(cfg orchestration.Config) Option {
	return func(o *Opts) { o.Orchestration = cfg }
}

// Server bundles the session manager and supporting services behind the HTTP
// surface.
type Server struct {
	mgr       *session.Manager
	sched     *scheduler.Scheduler
	opts      Opts
	retention time.Duration
}

// NewServer wires the API server around an existing session manager.
func NewServer(mgr *session.Manager, opts Opts) *Server {
	return &Server{
		mgr:       mgr,
		opts:      opts,
		retention: opts.SessionRetention,
	}
}

// routes registers all HTTP handlers on a fresh mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/sessions/", s.sessionHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run wires all modules together and serves the API until the process is
// signalled. It owns the lifecycle of the telemetry sink, the janitor
// scheduler, and the HTTP listener.
func Run(enrichmentOpts []enrichment.Option, telemetryOpts []telemetry.Option, copygenOpts []copygen.Option, apiOpts []Option) error {
	opts := Opts{
		Addr:             DefaultAddr,
		JanitorCron:      DefaultJanitorCron,
		SessionRetention: DefaultSessionRetention,
		Orchestration:    orchestration.DefaultConfig(),
	}
	for _, opt := range apiOpts {
		opt(&opts)
	}
	if err := opts.Orchestration.Validate(); err != nil {
		slog.Error("api.Run: invalid orchestration configuration", "error", err)
		return fmt.Errorf("invalid orchestration configuration: %w", err)
	}

	checker, err := enrichment.NewClient(enrichmentOpts...)
	if err != nil {
		slog.Error("api.Run: failed to create enrichment client", "error", err)
		return fmt.Errorf("failed to create enrichment client: %w", err)
	}

	sink, err := telemetry.NewSink(telemetryOpts...)
	if err != nil {
		slog.Error("api.Run: failed to create telemetry sink", "error", err)
		return fmt.Errorf("failed to create telemetry sink: %w", err)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			slog.Warn("api.Run: failed to close telemetry sink", "error", closeErr)
		}
	}()

	// Copy generation is optional. No options means no API key was configured.
	var copyGen *copygen.Client
	if len(copygenOpts) > 0 {
		copyGen, err = copygen.NewClient(copygenOpts...)
		if err != nil {
			slog.Error("api.Run: failed to create copy generation client", "error", err)
			return fmt.Errorf("failed to create copy generation client: %w", err)
		}
		slog.Debug("api.Run: copy generation enabled")
	} else {
		slog.Debug("api.Run: copy generation disabled, using static decks")
	}

	mgr := session.NewManager(opts.Orchestration, checker, sink, copyGen)
	srv := NewServer(mgr, opts)

	srv.sched = scheduler.NewScheduler()
	defer srv.sched.Stop()
	if err := srv.sched.AddJob(opts.JanitorCron, func() {
		removed := mgr.SweepTerminal(srv.retention)
		slog.Debug("api janitor: sweep complete", "removed", removed, "live", mgr.Count())
	}); err != nil {
		slog.Error("api.Run: failed to schedule janitor", "error", err, "cron", opts.JanitorCron)
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}

	httpServer := &http.Server{
		Addr:    opts.Addr,
		Handler: srv.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api.Run: listening", "addr", opts.Addr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		slog.Error("api.Run: server error", "error", err)
		return err
	case sig := <-sigCh:
		slog.Info("api.Run: shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("api.Run: graceful shutdown failed", "error", err)
		return err
	}
	slog.Info("api.Run: shutdown complete")
	return nil
}
