package config_test

import (
	"errors"
	"os"
	"testing"

	"tidesync/internal/config"
)

func validConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Sftp.Host = "seedbox.example.com"
	cfg.Sftp.Username = "mirror"
	cfg.Sftp.Password = "secret"
	cfg.Sftp.RemoteRoot = "/media"
	cfg.Sftp.LocalRoot = base
	return cfg
}

func TestStaticProviderRequiresCredentials(t *testing.T) {
	provider := config.NewStaticProvider(config.Default())
	if _, err := provider.GetSftpConfig(); !errors.Is(err, config.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := provider.GetJellyfinConfig(); !errors.Is(err, config.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestStaticProviderReturnsIsolatedCopies(t *testing.T) {
	cfg := validConfig(t)
	cfg.Sftp.SkipFolders = []string{"samples"}
	provider := config.NewStaticProvider(cfg)

	got, err := provider.GetSftpConfig()
	if err != nil {
		t.Fatalf("GetSftpConfig: %v", err)
	}
	got.SkipFolders[0] = "mutated"

	again, _ := provider.GetSftpConfig()
	if again.SkipFolders[0] != "samples" {
		t.Fatalf("returned config shares state: %v", again.SkipFolders)
	}
}

func TestReplaceFiresChangeCallbacks(t *testing.T) {
	provider := config.NewStaticProvider(validConfig(t))
	fired := 0
	provider.OnConfigChanged(func() { fired++ })

	next := validConfig(t)
	next.Sftp.Host = "other.example.com"
	provider.Replace(next)

	if fired != 1 {
		t.Fatalf("expected 1 callback, got %d", fired)
	}
	got, err := provider.GetSftpConfig()
	if err != nil || got.Host != "other.example.com" {
		t.Fatalf("replacement not visible: %+v %v", got, err)
	}
}

func TestFileProviderReloadKeepsPreviousOnError(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
[sftp]
host = "seedbox.example.com"
username = "mirror"
password = "secret"
remote_root = "/media"
local_root = "`+base+`"
`)

	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	provider := config.NewFileProvider(cfg, resolved, nil)

	// Break the file; the previous snapshot must survive.
	if err := os.WriteFile(path, []byte(`[sftp]`+"\n"+`sync_interval_minutes = 1`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := provider.Reload(); err == nil {
		t.Fatal("expected reload error for invalid config")
	}
	got, err := provider.GetSftpConfig()
	if err != nil || got.Host != "seedbox.example.com" {
		t.Fatalf("previous snapshot lost: %+v %v", got, err)
	}
}

func TestFileProviderReloadFiresCallbacks(t *testing.T) {
	base := t.TempDir()
	body := `
[sftp]
host = "seedbox.example.com"
username = "mirror"
password = "secret"
remote_root = "/media"
local_root = "` + base + `"
`
	path := writeConfig(t, body)
	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	provider := config.NewFileProvider(cfg, resolved, nil)

	fired := 0
	provider.OnConfigChanged(func() { fired++ })

	updated := []byte(body + "\nsync_interval_minutes = 30\n")
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := provider.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected 1 callback, got %d", fired)
	}
	got, _ := provider.GetSftpConfig()
	if got.SyncIntervalMinutes != 30 {
		t.Fatalf("reload not applied: %d", got.SyncIntervalMinutes)
	}
}
