package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/api"
	"github.com/MossHollow/InterludeEngine/internal/copygen"
	"github.com/MossHollow/InterludeEngine/internal/enrichment"
	"github.com/MossHollow/InterludeEngine/internal/telemetry"
	"github.com/MossHollow/InterludeEngine/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for interlude engine state data
	DefaultStateDir = "/var/lib/interlude"
	// DefaultDBFileName is the default SQLite telemetry database filename
	DefaultDBFileName = "interlude.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	enrichmentOpts := buildEnrichmentOptions(flags)
	telemetryOpts := buildTelemetryOptions(flags)
	copygenOpts := buildCopygenOptions(flags, config)
	apiOpts := buildAPIOptions(flags, config)

	// Start the service
	slog.Info("Bootstrapping InterludeEngine with configured modules")
	slog.Debug("Module options counts", "enrichment", len(enrichmentOpts), "telemetry", len(telemetryOpts), "copygen", len(copygenOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(enrichmentOpts, telemetryOpts, copygenOpts, apiOpts); err != nil {
		slog.Error("InterludeEngine failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("InterludeEngine exited successfully")
}

// Config holds environment configuration
type Config struct {
	EnrichmentURL    string
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	APIAddr          string
	SessionRetention time.Duration
	CopygenEnabled   bool
}

// Flags holds command line flag values
type Flags struct {
	enrichmentURL *string
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	apiAddr       *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		EnrichmentURL:    os.Getenv("ENRICHMENT_BASE_URL"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("INTERLUDE_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		SessionRetention: util.ParseDurationEnv("SESSION_RETENTION", api.DefaultSessionRetention),
		CopygenEnabled:   util.ParseBoolEnv("COPYGEN_ENABLED", true),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No INTERLUDE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("INTERLUDE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"ENRICHMENT_BASE_URL", config.EnrichmentURL,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"INTERLUDE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"SESSION_RETENTION", config.SessionRetention,
		"COPYGEN_ENABLED", config.CopygenEnabled)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		enrichmentURL: flag.String("enrichment-url", config.EnrichmentURL, "enrichment backend base URL (overrides $ENRICHMENT_BASE_URL)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for InterludeEngine data (overrides $INTERLUDE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the telemetry sink (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for copy generation (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"enrichmentURL", *flags.enrichmentURL,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildEnrichmentOptions constructs enrichment client configuration options
func buildEnrichmentOptions(flags Flags) []enrichment.Option {
	var enrichmentOpts []enrichment.Option
	if *flags.enrichmentURL != "" {
		enrichmentOpts = append(enrichmentOpts, enrichment.WithBaseURL(*flags.enrichmentURL))
	}
	return enrichmentOpts
}

// buildTelemetryOptions constructs telemetry sink configuration options
func buildTelemetryOptions(flags Flags) []telemetry.Option {
	var telemetryOpts []telemetry.Option
	if *flags.dbDSN != "" {
		// Check if it's a PostgreSQL DSN using the shared detection function
		if telemetry.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL sink", "dsn_type", "postgresql", "dsn_set", true)
			telemetryOpts = append(telemetryOpts, telemetry.WithPostgresDSN(*flags.dbDSN))
		} else {
			// Assume SQLite for file paths
			slog.Debug("Detected SQLite DSN, configuring SQLite sink", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			telemetryOpts = append(telemetryOpts, telemetry.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory telemetry sink")
	}
	return telemetryOpts
}

// buildCopygenOptions constructs copy generation configuration options
func buildCopygenOptions(flags Flags, config Config) []copygen.Option {
	var copygenOpts []copygen.Option
	if !config.CopygenEnabled {
		slog.Debug("Copy generation disabled via COPYGEN_ENABLED")
		return copygenOpts
	}
	if *flags.openaiKey != "" {
		copygenOpts = append(copygenOpts, copygen.WithAPIKey(*flags.openaiKey))
	}
	return copygenOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if config.SessionRetention != api.DefaultSessionRetention {
		apiOpts = append(apiOpts, api.WithSessionRetention(config.SessionRetention))
	}
	return apiOpts
}
