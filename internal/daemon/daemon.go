package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tidesync/internal/config"
	"tidesync/internal/journal"
	"tidesync/internal/logging"
	"tidesync/internal/mediaserver"
	"tidesync/internal/remotefs"
	"tidesync/internal/runner"
	"tidesync/internal/scheduler"
	"tidesync/internal/status"
	"tidesync/internal/tasks"
	"tidesync/internal/transfer"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	provider *config.FileProvider
	logger   *slog.Logger
	store    *journal.Store
	tracker  *status.Tracker
	runner   *runner.Runner
	sched    *scheduler.AutoSync
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Sync         status.SyncStatus
	JournalPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, provider *config.FileProvider, store *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || provider == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, provider, store, and logger")
	}

	tracker := status.NewTracker()

	syncEng := transfer.NewEngine(remotefs.SFTPDialer{}, tracker, logger, store, store)
	syncEng.OnFinalized(func(tr status.FileTransfer) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.RecordTransfer(ctx, tr); err != nil {
			logger.Warn("unable to persist transfer record", logging.Error(err))
		}
	})

	taskEng := tasks.NewOrchestrator(func(jc config.JellyfinConfig) mediaserver.Client {
		return mediaserver.NewFromConfig(jc)
	}, tracker, logger, store, store)

	run := runner.New(provider, tracker, syncEng, taskEng, logger, store, store)
	run.EnablePostSyncTasks(true)
	run.OnSyncCompleted(func(ts time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SetLastSyncTime(ctx, ts); err != nil {
			logger.Warn("unable to persist last sync time", logging.Error(err))
		}
	})

	sched := scheduler.New(run, tracker, logger, store)
	run.SetScheduler(sched)

	lockPath := filepath.Join(cfg.Daemon.LogDir, "tidesyncd.lock")
	return &Daemon{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		store:    store,
		tracker:  tracker,
		runner:   run,
		sched:    sched,
		logPath:  filepath.Join(cfg.Daemon.LogDir, "tidesync.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, restores durable state, arms the
// scheduler, and begins watching the configuration file.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tidesync daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	d.restoreLastSync()

	d.provider.OnConfigChanged(d.rearmFromProvider)
	if err := d.provider.Watch(d.ctx); err != nil {
		d.logger.Warn("config watch unavailable; edit requires restart", logging.Error(err))
	}

	if sftpCfg, err := d.provider.GetSftpConfig(); err == nil {
		d.sched.EnsureStartOnRestart(sftpCfg)
	}

	d.running.Store(true)
	d.logger.Info("tidesync daemon started", slog.String("lock", d.lockPath))
	return nil
}

// Stop halts the active run, disarms the scheduler, and releases the daemon
// lock. It blocks until the in-flight run has fully terminated.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.sched.Disarm()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.runner.Stop()
	d.runner.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("tidesync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Runner exposes the job runner for control surfaces.
func (d *Daemon) Runner() *runner.Runner {
	return d.runner
}

// Journal exposes the durable store for history queries.
func (d *Daemon) Journal() *journal.Store {
	return d.store
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Sync:         d.runner.Status(),
		JournalPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// restoreLastSync seeds the tracker with the persisted last sync time so the
// incremental cutoff survives restarts.
func (d *Daemon) restoreLastSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts, ok, err := d.store.LastSyncTime(ctx)
	if err != nil {
		d.logger.Warn("unable to restore last sync time", logging.Error(err))
		return
	}
	if ok {
		d.tracker.SetLastSyncTime(ts)
	}
}

// rearmFromProvider runs on every successful config reload.
func (d *Daemon) rearmFromProvider() {
	sftpCfg, err := d.provider.GetSftpConfig()
	if err != nil {
		d.sched.Rearm(config.SftpConfig{})
		return
	}
	d.sched.Rearm(sftpCfg)
}
