package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tidesync/internal/activity"
	"tidesync/internal/config"
	"tidesync/internal/logging"
	"tidesync/internal/status"
)

// Kind selects which engine occupies the worker.
type Kind string

const (
	KindSync     Kind = "sync"
	KindJellyfin Kind = "jellyfin"
)

// ErrConflict is returned by Start while another run is active. The status
// is left unmodified.
var ErrConflict = errors.New("a run is already active")

// ErrInvalidConfig is returned by Start when required configuration is
// missing or the Jellyfin connection has not been tested.
var ErrInvalidConfig = errors.New("invalid configuration")

// SyncEngine mirrors the remote tree.
type SyncEngine interface {
	Run(ctx context.Context, cfg config.SftpConfig) error
}

// TaskEngine executes the ordered maintenance task queue.
type TaskEngine interface {
	Run(ctx context.Context, cfg config.JellyfinConfig) error
}

// Scheduler is what the runner asks for the next fire time once a run
// completes. A nil next time means auto sync is disabled.
type Scheduler interface {
	ScheduleNext() *time.Time
}

// Runner drives the job state machine.
type Runner struct {
	provider config.Provider
	tracker  *status.Tracker
	syncEng  SyncEngine
	taskEng  TaskEngine
	logger   *slog.Logger
	events   activity.Logger
	errs     activity.ErrorSink

	mu     sync.Mutex
	active bool
	kind   Kind
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sched Scheduler

	// chainTasks enables the automatic Jellyfin run after a sync that
	// downloaded files. The daemon turns this on; one-shot runs leave it off.
	chainTasks bool

	// onSyncCompleted receives the completion time of every successful sync
	// run, e.g. for durable bookkeeping. Optional.
	onSyncCompleted func(time.Time)
}

// New constructs a runner around the two engines.
func New(provider config.Provider, tracker *status.Tracker, syncEng SyncEngine, taskEng TaskEngine, logger *slog.Logger, events activity.Logger, errs activity.ErrorSink) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if events == nil {
		events = activity.Nop{}
	}
	if errs == nil {
		errs = activity.Nop{}
	}
	return &Runner{
		provider: provider,
		tracker:  tracker,
		syncEng:  syncEng,
		taskEng:  taskEng,
		logger:   logger,
		events:   events,
		errs:     errs,
	}
}

// SetScheduler wires the scheduler consulted after run completion.
func (r *Runner) SetScheduler(sched Scheduler) {
	r.mu.Lock()
	r.sched = sched
	r.mu.Unlock()
}

// EnablePostSyncTasks turns on the automatic Jellyfin run after a sync that
// downloaded files.
func (r *Runner) EnablePostSyncTasks(enabled bool) {
	r.mu.Lock()
	r.chainTasks = enabled
	r.mu.Unlock()
}

// OnSyncCompleted registers a hook invoked after every successful sync run.
func (r *Runner) OnSyncCompleted(fn func(time.Time)) {
	r.mu.Lock()
	r.onSyncCompleted = fn
	r.mu.Unlock()
}

// Status returns a read-only snapshot of the shared run state.
func (r *Runner) Status() status.SyncStatus {
	return r.tracker.Snapshot()
}

// Busy reports whether an engine currently occupies the worker.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start dispatches a run of the given kind. It fails with ErrConflict while
// another run is active and with ErrInvalidConfig when the configuration
// cannot support the requested run; neither failure mutates the status.
func (r *Runner) Start(kind Kind) (status.SyncStatus, error) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return r.tracker.Snapshot(), ErrConflict
	}

	var sftpCfg config.SftpConfig
	var jellyfinCfg config.JellyfinConfig
	switch kind {
	case KindSync:
		cfg, err := r.provider.GetSftpConfig()
		if err != nil {
			r.mu.Unlock()
			return r.tracker.Snapshot(), fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if !cfg.HasCredentials() {
			r.mu.Unlock()
			return r.tracker.Snapshot(), fmt.Errorf("%w: host, username, password, remote root, and local root are required", ErrInvalidConfig)
		}
		sftpCfg = cfg
	case KindJellyfin:
		cfg, err := r.provider.GetJellyfinConfig()
		if err != nil {
			r.mu.Unlock()
			return r.tracker.Snapshot(), fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if !cfg.Tested {
			r.mu.Unlock()
			return r.tracker.Snapshot(), fmt.Errorf("%w: test the jellyfin connection first", ErrInvalidConfig)
		}
		jellyfinCfg = cfg
	default:
		r.mu.Unlock()
		return r.tracker.Snapshot(), fmt.Errorf("%w: unknown run kind %q", ErrInvalidConfig, kind)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.active = true
	r.kind = kind
	r.cancel = cancel
	r.wg.Add(1)

	switch kind {
	case KindSync:
		r.tracker.BeginRun(status.StateConnecting, "Connecting to "+sftpCfg.Host)
	case KindJellyfin:
		r.tracker.BeginRun(status.StateJellyfin, "Starting Jellyfin tasks")
	}
	r.mu.Unlock()

	switch kind {
	case KindSync:
		r.events.Record(activity.NewEvent("sync.start", map[string]any{
			"host":        sftpCfg.Host,
			"remote_root": sftpCfg.RemoteRoot,
		}))
		go r.runSync(ctx, sftpCfg)
	case KindJellyfin:
		r.events.Record(activity.NewEvent("jellyfin.run_started", nil))
		go r.runJellyfin(ctx, jellyfinCfg)
	}

	return r.tracker.Snapshot(), nil
}

// Stop requests cooperative cancellation of the active run. It is a no-op
// success when the worker is idle.
func (r *Runner) Stop() status.SyncStatus {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return r.tracker.Snapshot()
	}
	kind := r.kind
	cancel := r.cancel
	r.mu.Unlock()

	r.tracker.SetStopping("Stopping")
	r.events.Record(activity.NewEvent("run.stop_requested", map[string]any{"kind": string(kind)}))
	cancel()
	return r.tracker.Snapshot()
}

// Wait blocks until the current run, if any, has fully terminated.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runSync(ctx context.Context, cfg config.SftpConfig) {
	var chainJellyfin bool
	defer func() {
		r.finishRun()
		if chainJellyfin {
			if _, err := r.Start(KindJellyfin); err != nil {
				r.logger.Warn("unable to start jellyfin tasks after sync", logging.Error(err))
				r.events.Record(activity.NewEvent("jellyfin.post_sync_failed", map[string]any{"error": err.Error()}))
			}
		}
	}()

	err := r.syncEng.Run(ctx, cfg)
	stats := r.tracker.Stats()
	switch {
	case err == nil:
		now := time.Now().UTC()
		r.tracker.SetLastSyncTime(now)
		r.mu.Lock()
		hook := r.onSyncCompleted
		r.mu.Unlock()
		if hook != nil {
			hook(now)
		}
		r.tracker.FinishRun("Idle")
		r.events.Record(activity.NewEvent("sync.completed", map[string]any{
			"files_downloaded": stats.FilesDownloaded,
			"bytes_downloaded": stats.BytesDownloaded,
			"errors":           stats.Errors,
		}))
		r.mu.Lock()
		chainEnabled := r.chainTasks
		r.mu.Unlock()
		chainJellyfin = chainEnabled && stats.FilesDownloaded > 0 && r.jellyfinReady()
	case errors.Is(err, context.Canceled):
		r.tracker.FinishRun("Stopped by user")
		r.events.Record(activity.NewEvent("sync.cancelled", nil))
	default:
		r.logger.Error("sync run failed", logging.Error(err))
		r.errs.RecordError(err.Error())
		r.tracker.FailRun("Sync failed", err.Error())
		r.events.Record(activity.NewEvent("sync.failed", map[string]any{"error": err.Error()}))
	}
}

func (r *Runner) runJellyfin(ctx context.Context, cfg config.JellyfinConfig) {
	defer r.finishRun()

	err := r.taskEng.Run(ctx, cfg)
	switch {
	case err == nil:
		r.tracker.FinishRun("Idle")
		r.events.Record(activity.NewEvent("jellyfin.run_completed", nil))
	case errors.Is(err, context.Canceled):
		r.tracker.FinishRun("Jellyfin tasks cancelled")
		r.events.Record(activity.NewEvent("jellyfin.run_cancelled", nil))
	default:
		r.logger.Error("jellyfin run failed", logging.Error(err))
		r.errs.RecordError(fmt.Sprintf("jellyfin tasks failed: %v", err))
		r.tracker.FailRun("Jellyfin tasks failed", err.Error())
		r.events.Record(activity.NewEvent("jellyfin.run_failed", map[string]any{"error": err.Error()}))
	}
}

// finishRun releases the worker slot and re-arms the scheduler. The error
// state, when set, stays visible as the terminal annotation of the finished
// run; it never blocks the next Start.
func (r *Runner) finishRun() {
	r.mu.Lock()
	r.active = false
	r.cancel = nil
	sched := r.sched
	r.mu.Unlock()

	if sched != nil {
		r.tracker.SetNextSyncTime(sched.ScheduleNext())
	}
	r.wg.Done()
}

// jellyfinReady reports whether a post-sync task run can start.
func (r *Runner) jellyfinReady() bool {
	cfg, err := r.provider.GetJellyfinConfig()
	if err != nil {
		return false
	}
	return cfg.Tested && len(cfg.EnabledTasks()) > 0
}
