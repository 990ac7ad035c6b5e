package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// useRemotesFile points the remotes file at a fresh temp path.
func useRemotesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "remotes.toml")
	t.Setenv("DBR_REMOTES_FILE", path)
	return path
}

// runRemote runs a remote subcommand's RunE and returns its output.
func runRemote(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	c.SetOut(&buf)
	t.Cleanup(func() { c.SetOut(nil) })
	err := c.RunE(c, args)
	return buf.String(), err
}

func TestRemotesFile_RoundTrip(t *testing.T) {
	path := useRemotesFile(t)

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {URL: "prod.example.com:9090", HTTPURL: "https://prod.example.com", NATSURL: "nats://prod:4222", Organization: "org-1"},
			"local": {URL: "localhost:9090"},
		},
	}
	if err := saveRemotes(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loadRemotes()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" || got.Remotes["prod"] != in.Remotes["prod"] || got.Remotes["local"] != in.Remotes["local"] {
		t.Errorf("round trip = %+v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file permissions = %04o, want 0600", perm)
	}
	if info, _ := os.Stat(filepath.Dir(path)); info.Mode().Perm() != 0o700 {
		t.Errorf("dir permissions = %04o, want 0700", info.Mode().Perm())
	}
	// No temp files are left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("state dir has %d entries, want 1", len(entries))
	}
}

func TestLoadRemotes_NoFile(t *testing.T) {
	useRemotesFile(t)
	cfg, err := loadRemotes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || cfg.Remotes == nil || len(cfg.Remotes) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadRemotes_Corrupt(t *testing.T) {
	path := useRemotesFile(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("active = [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRemotes(); err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("err = %v, want it to name the file", err)
	}
}

func TestRemoteValidate(t *testing.T) {
	tests := []struct {
		name   string
		remote Remote
		want   string
	}{
		{"ok", Remote{URL: "localhost:9090", HTTPURL: "http://localhost:8080", NATSURL: "nats://localhost:4222"}, ""},
		{"bad name", Remote{URL: "localhost:9090"}, "invalid remote name"},
		{"no port", Remote{URL: "localhost"}, "want host:port"},
		{"http scheme", Remote{URL: "h:1", HTTPURL: "ftp://h"}, "http url"},
		{"nats scheme", Remote{URL: "h:1", NATSURL: "h:4222"}, "nats url"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			name := "prod"
			if tc.name == "bad name" {
				name = "-prod"
			}
			err := tc.remote.validate(name)
			switch {
			case tc.want == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tc.want != "" && (err == nil || !strings.Contains(err.Error(), tc.want)):
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestRemoteCommands(t *testing.T) {
	useRemotesFile(t)

	if err := remoteAddCmd.Flags().Set("organization", "org-7"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = remoteAddCmd.Flags().Set("organization", "") })

	out, err := runRemote(t, remoteAddCmd, "local", "localhost:9090")
	if err != nil || !strings.Contains(out, `"local" added`) {
		t.Fatalf("add: %q %v", out, err)
	}
	out, err = runRemote(t, remoteAddCmd, "local", "localhost:9191")
	if err != nil || !strings.Contains(out, `"local" updated`) {
		t.Fatalf("upsert: %q %v", out, err)
	}
	if _, err := runRemote(t, remoteAddCmd, "staging", "staging:9090"); err != nil {
		t.Fatal(err)
	}

	// The first remote added becomes active.
	cfg, _ := loadRemotes()
	if cfg.Active != "local" || cfg.Remotes["local"].URL != "localhost:9191" || cfg.Remotes["local"].Organization != "org-7" {
		t.Fatalf("after add: %+v", cfg)
	}

	if _, err := runRemote(t, remoteUseCmd, "staging"); err != nil {
		t.Fatal(err)
	}
	out, err = runRemote(t, remoteListCmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "* staging") || !strings.Contains(out, "  local") {
		t.Errorf("list:\n%s", out)
	}

	out, err = runRemote(t, remoteShowCmd, "local")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"localhost:9191", "org-7"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(active)") {
		t.Errorf("local is not active:\n%s", out)
	}

	if _, err := runRemote(t, remoteRemoveCmd, "staging"); err != nil {
		t.Fatal(err)
	}
	cfg, _ = loadRemotes()
	if _, ok := cfg.Remotes["staging"]; ok || cfg.Active != "" {
		t.Errorf("after remove: %+v", cfg)
	}
}

func TestRemoteList_JSON(t *testing.T) {
	useRemotesFile(t)
	if err := saveRemotes(RemotesConfig{Active: "a", Remotes: map[string]Remote{"a": {URL: "a:1"}}}); err != nil {
		t.Fatal(err)
	}
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	out, err := runRemote(t, remoteListCmd)
	if err != nil {
		t.Fatal(err)
	}
	var got RemotesConfig
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("not JSON: %v\n%s", err, out)
	}
	if got.Active != "a" || got.Remotes["a"].URL != "a:1" {
		t.Errorf("got %+v", got)
	}
}

func TestRemoteCommands_Errors(t *testing.T) {
	tests := []struct {
		name string
		cmd  *cobra.Command
		args []string
	}{
		{"use unknown", remoteUseCmd, []string{"ghost"}},
		{"remove unknown", remoteRemoveCmd, []string{"ghost"}},
		{"show unknown", remoteShowCmd, []string{"ghost"}},
		{"show no active", remoteShowCmd, nil},
		{"add bad address", remoteAddCmd, []string{"x", "no-port"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			useRemotesFile(t)
			if _, err := runRemote(t, tc.cmd, tc.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
