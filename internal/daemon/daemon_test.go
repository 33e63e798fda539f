package daemon_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tidesync/internal/config"
	"tidesync/internal/daemon"
	"tidesync/internal/logging"
	"tidesync/internal/testsupport"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	provider := config.NewFileProvider(cfg, configPath, logging.NewNop())

	d, err := daemon.New(cfg, provider, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, cfg
}

func TestStartStopLifecycle(t *testing.T) {
	d, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if d.Status().Running {
		t.Fatal("daemon should not report running before Start")
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("daemon should report running after Start")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start should fail while running")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon should report stopped after Stop")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")

	first, err := daemon.New(cfg, config.NewFileProvider(cfg, configPath, logging.NewNop()),
		testsupport.MustOpenJournal(t, cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, config.NewFileProvider(cfg, configPath, logging.NewNop()),
		testsupport.MustOpenJournal(t, cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second daemon instance should fail to acquire the lock")
	}
}

func TestStartRestoresLastSyncTime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	want := time.Now().UTC().Truncate(time.Second).Add(-2 * time.Hour)
	if err := store.SetLastSyncTime(context.Background(), want); err != nil {
		t.Fatalf("SetLastSyncTime: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "config.toml")
	d, err := daemon.New(cfg, config.NewFileProvider(cfg, configPath, logging.NewNop()), store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	snap := d.Runner().Status()
	if snap.LastSyncTime == nil || *snap.LastSyncTime != want.Unix() {
		t.Fatalf("last sync time not restored: %+v", snap.LastSyncTime)
	}
}
