// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"tidesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Daemon.DataDir = filepath.Join(base, "data")
	cfgVal.Daemon.LogDir = filepath.Join(base, "logs")
	cfgVal.Sftp.Host = "sftp.example.test"
	cfgVal.Sftp.Username = "mirror"
	cfgVal.Sftp.Password = "secret"
	cfgVal.Sftp.RemoteRoot = "/srv/media"
	cfgVal.Sftp.LocalRoot = filepath.Join(base, "library")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAutoSync enables auto sync with the given interval in minutes.
func WithAutoSync(intervalMinutes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sftp.AutoSyncEnabled = true
		b.cfg.Sftp.SyncIntervalMinutes = intervalMinutes
	}
}

// WithJellyfinTasks marks the Jellyfin connection tested and selects the
// given enabled task keys in order.
func WithJellyfinTasks(keys ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jellyfin.ServerURL = "http://jellyfin.example.test:8096"
		b.cfg.Jellyfin.APIKey = "test-key"
		b.cfg.Jellyfin.Tested = true
		b.cfg.Jellyfin.SelectedTasks = b.cfg.Jellyfin.SelectedTasks[:0]
		for i, key := range keys {
			b.cfg.Jellyfin.SelectedTasks = append(b.cfg.Jellyfin.SelectedTasks, config.JellyfinSelectedTask{
				Key:     key,
				Name:    key,
				Enabled: true,
				Order:   i,
			})
		}
	}
}
