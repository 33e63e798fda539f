package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tidesync/internal/config"
	"tidesync/internal/testsupport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndNormalizes(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
[daemon]
data_dir = "`+filepath.Join(base, "data")+`"
log_dir = "`+filepath.Join(base, "logs")+`"

[sftp]
host = "  seedbox.example.com  "
username = " mirror "
password = "secret"
remote_root = "media/incoming/"
local_root = "`+filepath.Join(base, "library")+`"
skip_folders = [" Backups ", "", "samples"]
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Sftp.Host != "seedbox.example.com" || cfg.Sftp.Username != "mirror" {
		t.Fatalf("fields not trimmed: %q %q", cfg.Sftp.Host, cfg.Sftp.Username)
	}
	if cfg.Sftp.RemoteRoot != "/media/incoming" {
		t.Fatalf("remote root not normalized: %q", cfg.Sftp.RemoteRoot)
	}
	if cfg.Sftp.Port != 22 {
		t.Fatalf("default port not applied: %d", cfg.Sftp.Port)
	}
	if cfg.Sftp.SyncIntervalMinutes != 240 {
		t.Fatalf("default interval not applied: %d", cfg.Sftp.SyncIntervalMinutes)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}
	set := cfg.Sftp.SkipFolderSet()
	if _, ok := set["backups"]; !ok {
		t.Fatalf("skip folders not lowercased: %v", set)
	}
	if _, ok := set["samples"]; !ok {
		t.Fatalf("skip folder missing: %v", set)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("file should not exist")
	}
	if cfg.Sftp.Port != 22 || cfg.Sftp.SyncIntervalMinutes != 240 {
		t.Fatalf("defaults not applied: %+v", cfg.Sftp)
	}
}

func TestLoadPasswordFallsBackToEnv(t *testing.T) {
	t.Setenv("TIDESYNC_SFTP_PASSWORD", "from-env")
	path := writeConfig(t, `
[sftp]
host = "seedbox.example.com"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sftp.Password != "from-env" {
		t.Fatalf("env fallback not applied: %q", cfg.Sftp.Password)
	}
}

func TestLoadRejectsIntervalOutOfRange(t *testing.T) {
	for _, interval := range []string{"1", "2000"} {
		path := writeConfig(t, `
[sftp]
sync_interval_minutes = `+interval+`
`)
		if _, _, _, err := config.Load(path); err == nil {
			t.Fatalf("interval %s should be rejected", interval)
		}
	}
}

func TestLoadRejectsBadStartAfter(t *testing.T) {
	path := writeConfig(t, `
[sftp]
start_after = "yesterday"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("bad start_after should be rejected")
	}
}

func TestLoadRejectsTestedJellyfinWithoutServer(t *testing.T) {
	path := writeConfig(t, `
[jellyfin]
tested = true
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "jellyfin.server_url") {
		t.Fatalf("expected server_url error, got %v", err)
	}
}

func TestLoadRejectsDuplicateTaskKeys(t *testing.T) {
	path := writeConfig(t, `
[jellyfin]
server_url = "http://jellyfin:8096"
api_key = "k"
tested = true

[[jellyfin.selected_tasks]]
key = "RefreshLibrary"
name = "Scan Media Library"
enabled = true
order = 1

[[jellyfin.selected_tasks]]
key = "RefreshLibrary"
name = "Scan Again"
enabled = true
order = 2
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate key") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestEnabledTasksSortedByOrder(t *testing.T) {
	cfg := config.JellyfinConfig{
		SelectedTasks: []config.JellyfinSelectedTask{
			{Key: "c", Name: "Third", Enabled: true, Order: 3},
			{Key: "a", Name: "First", Enabled: true, Order: 1},
			{Key: "skip", Name: "Disabled", Enabled: false, Order: 0},
			{Key: "b", Name: "Second", Enabled: true, Order: 2},
		},
	}
	tasks := cfg.EnabledTasks()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 enabled tasks, got %d", len(tasks))
	}
	for i, want := range []string{"a", "b", "c"} {
		if tasks[i].Key != want {
			t.Fatalf("position %d: got %q want %q", i, tasks[i].Key, want)
		}
	}
}

func TestStartAfterTime(t *testing.T) {
	cfg := config.SftpConfig{StartAfter: "2026-08-01T00:00:00Z"}
	ts, ok := cfg.StartAfterTime()
	if !ok || ts.Year() != 2026 || ts.Month() != 8 {
		t.Fatalf("unexpected parse: %v %v", ts, ok)
	}
	if _, ok := (config.SftpConfig{}).StartAfterTime(); ok {
		t.Fatal("empty start_after should report no floor")
	}
}

func TestHasCredentials(t *testing.T) {
	cfg := config.SftpConfig{
		Host:       "seedbox.example.com",
		Username:   "mirror",
		Password:   "secret",
		RemoteRoot: "/media",
		LocalRoot:  "/library",
	}
	if !cfg.HasCredentials() {
		t.Fatal("complete credentials reported missing")
	}
	cfg.Password = ""
	if cfg.HasCredentials() {
		t.Fatal("missing password reported complete")
	}
}

func TestAutoSyncValidatesWithCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoSync(30))
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := cfg.Sftp.SyncInterval(); got != 30*time.Minute {
		t.Fatalf("unexpected interval %v", got)
	}

	cfg.Sftp.Password = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("auto sync without credentials should be rejected")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}
