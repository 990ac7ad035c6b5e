// Package config loads server settings from DBR_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rnwolf/dbr/internal/clock"
	"github.com/rnwolf/dbr/internal/model"
)

type Config struct {
	DatabaseURL string // DBR_DATABASE_URL (required: postgres://, sqlite://path or memory://)
	GRPCAddr    string // DBR_GRPC_ADDR (default ":9090")
	HTTPAddr    string // DBR_HTTP_ADDR (default ":8080")
	NATSURL     string // DBR_NATS_URL (optional, empty = no bus)

	LogLevel  slog.Level // DBR_LOG_LEVEL (default info)
	LogFormat string     // DBR_LOG_FORMAT (text|json, default text)

	// Scheduling clock
	TimeUnit   time.Duration // DBR_TIME_UNIT (default 168h)
	ClockStart time.Time     // DBR_CLOCK_START (RFC3339; zero = process start)

	// Sync settings
	SyncInterval   time.Duration // DBR_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // DBR_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // DBR_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // DBR_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // DBR_SYNC_S3_KEY (default "dbr/backup.jsonl")
	SyncGitRepo    string        // DBR_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // DBR_SYNC_GIT_FILE (default "dbr.jsonl")
	SyncGitBranch  string        // DBR_SYNC_GIT_BRANCH (default "main")

	// Transition hooks run a shell command when a schedule reaches a
	// status. They are driven by bus events, so they need DBR_NATS_URL.
	Hooks       map[model.ScheduleStatus]string // DBR_HOOK_PRE_CONSTRAINT, DBR_HOOK_POST_CONSTRAINT, DBR_HOOK_COMPLETED
	HookTimeout time.Duration                   // DBR_HOOK_TIMEOUT (default 30s)
}

// hookEnv names the variable holding each status's hook command.
var hookEnv = map[model.ScheduleStatus]string{
	model.SchedulePreConstraint:  "DBR_HOOK_PRE_CONSTRAINT",
	model.SchedulePostConstraint: "DBR_HOOK_POST_CONSTRAINT",
	model.ScheduleCompleted:      "DBR_HOOK_COMPLETED",
}

// Database kinds accepted in DBR_DATABASE_URL.
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
	DatabaseMemory   = "memory"
)

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("DBR_DATABASE_URL"),
		GRPCAddr:       envOrDefault("DBR_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("DBR_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("DBR_NATS_URL"),
		LogFormat:      strings.ToLower(envOrDefault("DBR_LOG_FORMAT", "text")),
		SyncS3Bucket:   os.Getenv("DBR_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("DBR_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("DBR_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("DBR_SYNC_S3_KEY", "dbr/backup.jsonl"),
		SyncGitRepo:    os.Getenv("DBR_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("DBR_SYNC_GIT_FILE", "dbr.jsonl"),
		SyncGitBranch:  envOrDefault("DBR_SYNC_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DBR_DATABASE_URL is required")
	}
	if _, _, err := c.Database(); err != nil {
		return nil, err
	}

	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("DBR_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("DBR_LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, fmt.Errorf("DBR_LOG_FORMAT: must be text or json, got %q", c.LogFormat)
	}

	unit, err := time.ParseDuration(envOrDefault("DBR_TIME_UNIT", clock.DefaultStep.String()))
	if err != nil {
		return nil, fmt.Errorf("DBR_TIME_UNIT: %w", err)
	}
	if unit <= 0 {
		return nil, fmt.Errorf("DBR_TIME_UNIT: must be positive, got %s", unit)
	}
	c.TimeUnit = unit

	if s := os.Getenv("DBR_CLOCK_START"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("DBR_CLOCK_START: %w", err)
		}
		c.ClockStart = t.UTC()
	}

	if s := os.Getenv("DBR_SYNC_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("DBR_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	c.Hooks = make(map[model.ScheduleStatus]string)
	for status, key := range hookEnv {
		if cmd := strings.TrimSpace(os.Getenv(key)); cmd != "" {
			c.Hooks[status] = cmd
		}
	}
	hookTimeout, err := time.ParseDuration(envOrDefault("DBR_HOOK_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("DBR_HOOK_TIMEOUT: %w", err)
	}
	if hookTimeout <= 0 {
		return nil, fmt.Errorf("DBR_HOOK_TIMEOUT: must be positive, got %s", hookTimeout)
	}
	c.HookTimeout = hookTimeout

	return c, nil
}

// Database splits DatabaseURL into its kind and the driver-specific DSN.
// Postgres URLs are passed through unchanged.
func (c *Config) Database() (kind, dsn string, err error) {
	u := c.DatabaseURL
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DatabasePostgres, u, nil
	case strings.HasPrefix(u, "sqlite://"):
		path := strings.TrimPrefix(u, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("DBR_DATABASE_URL: sqlite:// needs a path")
		}
		return DatabaseSQLite, path, nil
	case u == "memory://" || u == "memory":
		return DatabaseMemory, "", nil
	}
	return "", "", fmt.Errorf("DBR_DATABASE_URL: unsupported scheme in %q", u)
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
