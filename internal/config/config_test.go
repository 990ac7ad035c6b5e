package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rnwolf/dbr/internal/model"
)

var allEnvVars = []string{
	"DBR_DATABASE_URL", "DBR_GRPC_ADDR", "DBR_HTTP_ADDR", "DBR_NATS_URL",
	"DBR_LOG_LEVEL", "DBR_LOG_FORMAT", "DBR_TIME_UNIT", "DBR_CLOCK_START",
	"DBR_SYNC_INTERVAL", "DBR_SYNC_S3_BUCKET", "DBR_SYNC_S3_ENDPOINT",
	"DBR_SYNC_S3_REGION", "DBR_SYNC_S3_KEY", "DBR_SYNC_GIT_REPO",
	"DBR_SYNC_GIT_FILE", "DBR_SYNC_GIT_BRANCH",
	"DBR_HOOK_PRE_CONSTRAINT", "DBR_HOOK_POST_CONSTRAINT", "DBR_HOOK_COMPLETED", "DBR_HOOK_TIMEOUT",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantGRPCAddr string
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:    "UnsupportedScheme",
			env:     map[string]string{"DBR_DATABASE_URL": "mysql://localhost/dbr"},
			wantErr: true,
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"DBR_DATABASE_URL": "postgres://localhost/dbr"},
			wantGRPCAddr: ":9090",
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"DBR_DATABASE_URL": "sqlite:///var/lib/dbr.db",
				"DBR_GRPC_ADDR":    ":5050",
				"DBR_HTTP_ADDR":    ":3000",
				"DBR_NATS_URL":     "nats://localhost:4222",
			},
			wantGRPCAddr: ":5050",
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
		{
			name:    "BadLogLevel",
			env:     map[string]string{"DBR_DATABASE_URL": "memory://", "DBR_LOG_LEVEL": "loud"},
			wantErr: true,
		},
		{
			name:    "BadLogFormat",
			env:     map[string]string{"DBR_DATABASE_URL": "memory://", "DBR_LOG_FORMAT": "xml"},
			wantErr: true,
		},
		{
			name:    "NonPositiveTimeUnit",
			env:     map[string]string{"DBR_DATABASE_URL": "memory://", "DBR_TIME_UNIT": "0s"},
			wantErr: true,
		},
		{
			name:    "BadClockStart",
			env:     map[string]string{"DBR_DATABASE_URL": "memory://", "DBR_CLOCK_START": "monday"},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["DBR_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["DBR_DATABASE_URL"])
			}
			if cfg.GRPCAddr != tc.wantGRPCAddr {
				t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, tc.wantGRPCAddr)
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("DBR_DATABASE_URL", "memory://")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TimeUnit != 7*24*time.Hour {
		t.Errorf("TimeUnit = %s, want 168h", cfg.TimeUnit)
	}
	if !cfg.ClockStart.IsZero() {
		t.Errorf("ClockStart = %v, want zero", cfg.ClockStart)
	}
	if cfg.HookTimeout != 30*time.Second || len(cfg.Hooks) != 0 {
		t.Errorf("hooks = %v timeout %s, want none and 30s", cfg.Hooks, cfg.HookTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %s, want 0", cfg.SyncInterval)
	}
	if cfg.SyncS3Region != "us-east-1" || cfg.SyncS3Key != "dbr/backup.jsonl" {
		t.Errorf("S3 defaults = %q %q", cfg.SyncS3Region, cfg.SyncS3Key)
	}
	if cfg.SyncGitFile != "dbr.jsonl" || cfg.SyncGitBranch != "main" {
		t.Errorf("git defaults = %q %q", cfg.SyncGitFile, cfg.SyncGitBranch)
	}
}

func TestLoad_ClockAndSync(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("DBR_DATABASE_URL", "memory://")
	t.Setenv("DBR_TIME_UNIT", "24h")
	t.Setenv("DBR_CLOCK_START", "2026-01-05T09:00:00+01:00")
	t.Setenv("DBR_SYNC_INTERVAL", "5m")
	t.Setenv("DBR_SYNC_S3_BUCKET", "backups")
	t.Setenv("DBR_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TimeUnit != 24*time.Hour {
		t.Errorf("TimeUnit = %s", cfg.TimeUnit)
	}
	want := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	if !cfg.ClockStart.Equal(want) || cfg.ClockStart.Location() != time.UTC {
		t.Errorf("ClockStart = %v, want %v", cfg.ClockStart, want)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %s", cfg.SyncInterval)
	}
	if cfg.SyncS3Bucket != "backups" {
		t.Errorf("SyncS3Bucket = %q", cfg.SyncS3Bucket)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoad_Hooks(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("DBR_DATABASE_URL", "memory://")
	t.Setenv("DBR_HOOK_POST_CONSTRAINT", "  ./notify-release.sh  ")
	t.Setenv("DBR_HOOK_COMPLETED", "echo done")
	t.Setenv("DBR_HOOK_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Hooks) != 2 {
		t.Fatalf("Hooks = %v, want 2 entries", cfg.Hooks)
	}
	if got := cfg.Hooks[model.SchedulePostConstraint]; got != "./notify-release.sh" {
		t.Errorf("post_constraint hook = %q", got)
	}
	if got := cfg.Hooks[model.ScheduleCompleted]; got != "echo done" {
		t.Errorf("completed hook = %q", got)
	}
	if cfg.HookTimeout != 5*time.Second {
		t.Errorf("HookTimeout = %s", cfg.HookTimeout)
	}

	t.Setenv("DBR_HOOK_TIMEOUT", "-1s")
	if _, err := Load(); err == nil {
		t.Error("expected error for negative hook timeout")
	}
}

func TestDatabase(t *testing.T) {
	for _, tc := range []struct {
		url      string
		wantKind string
		wantDSN  string
		wantErr  bool
	}{
		{"postgres://u:p@db:5432/dbr?sslmode=disable", DatabasePostgres, "postgres://u:p@db:5432/dbr?sslmode=disable", false},
		{"postgresql://db/dbr", DatabasePostgres, "postgresql://db/dbr", false},
		{"sqlite:///tmp/dbr.db", DatabaseSQLite, "/tmp/dbr.db", false},
		{"sqlite://:memory:", DatabaseSQLite, ":memory:", false},
		{"memory://", DatabaseMemory, "", false},
		{"sqlite://", "", "", true},
		{"redis://cache", "", "", true},
	} {
		t.Run(tc.url, func(t *testing.T) {
			kind, dsn, err := (&Config{DatabaseURL: tc.url}).Database()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kind != tc.wantKind || dsn != tc.wantDSN {
				t.Errorf("Database() = %q, %q; want %q, %q", kind, dsn, tc.wantKind, tc.wantDSN)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: slog.LevelWarn, LogFormat: "json"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "org_id", "org-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"org_id":"org-1"`) {
		t.Errorf("expected JSON attrs, got %s", out)
	}
}
