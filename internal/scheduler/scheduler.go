package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"tidesync/internal/activity"
	"tidesync/internal/config"
	"tidesync/internal/logging"
	"tidesync/internal/runner"
	"tidesync/internal/status"
)

// Starter dispatches runs on the shared worker. *runner.Runner satisfies it.
type Starter interface {
	Start(kind runner.Kind) (status.SyncStatus, error)
}

// AutoSync owns the single auto-sync timer.
type AutoSync struct {
	starter Starter
	tracker *status.Tracker
	logger  *slog.Logger
	events  activity.Logger

	mu       sync.Mutex
	timer    *time.Timer
	enabled  bool
	interval time.Duration
	next     *time.Time

	now func() time.Time
}

// New constructs a disarmed scheduler.
func New(starter Starter, tracker *status.Tracker, logger *slog.Logger, events activity.Logger) *AutoSync {
	if logger == nil {
		logger = logging.NewNop()
	}
	if events == nil {
		events = activity.Nop{}
	}
	return &AutoSync{
		starter: starter,
		tracker: tracker,
		logger:  logger,
		events:  events,
		now:     time.Now,
	}
}

// Rearm replaces the armed timer from a fresh configuration snapshot. With
// auto sync disabled the scheduler goes dark and the published next sync
// time is cleared.
func (s *AutoSync) Rearm(cfg config.SftpConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	if !cfg.AutoSyncEnabled {
		s.enabled = false
		s.next = nil
		s.tracker.SetNextSyncTime(nil)
		s.events.Record(activity.NewEvent("autosync.disabled", nil))
		return
	}

	s.enabled = true
	s.interval = cfg.SyncInterval()
	base := s.now()
	if startAfter, ok := cfg.StartAfterTime(); ok && startAfter.After(base) {
		base = startAfter
	}
	at := base.Add(s.interval)
	s.armLocked(at)
	s.logger.Info("auto sync armed",
		slog.Time("next", at),
		slog.Duration("interval", s.interval))
	s.events.Record(activity.NewEvent("autosync.armed", map[string]any{
		"next": at.UTC().Format(time.RFC3339),
	}))
}

// Disarm stops the timer and clears the published next sync time.
func (s *AutoSync) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.enabled = false
	s.next = nil
	s.tracker.SetNextSyncTime(nil)
}

// ScheduleNext arms the timer one interval from now. The runner calls it as
// every run completes; it reports nil while auto sync is disabled.
func (s *AutoSync) ScheduleNext() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil
	}
	at := s.now().Add(s.interval)
	s.armLocked(at)
	next := at
	return &next
}

// NextFireTime reports the currently armed fire time, if any.
func (s *AutoSync) NextFireTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == nil {
		return nil
	}
	next := *s.next
	return &next
}

// EnsureStartOnRestart arms the timer and, when auto sync is enabled, kicks
// off an immediate run so a daemon restart does not silently lose the
// cadence. A busy worker or unusable configuration is not fatal.
func (s *AutoSync) EnsureStartOnRestart(cfg config.SftpConfig) {
	s.Rearm(cfg)
	if !cfg.AutoSyncEnabled {
		return
	}
	if _, err := s.starter.Start(runner.KindSync); err != nil {
		switch {
		case errors.Is(err, runner.ErrConflict):
		case errors.Is(err, runner.ErrInvalidConfig):
			s.logger.Warn("auto sync enabled but configuration is unusable", logging.Error(err))
		default:
			s.logger.Warn("startup sync did not start", logging.Error(err))
		}
	}
}

// fire runs on the timer goroutine. A busy worker skips the fire and re-arms
// a full interval past the missed fire time.
func (s *AutoSync) fire() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	firedAt := s.now()
	if s.next != nil {
		firedAt = *s.next
	}
	s.timer = nil
	interval := s.interval
	s.mu.Unlock()

	_, err := s.starter.Start(runner.KindSync)
	switch {
	case err == nil:
		// The run's completion re-arms via ScheduleNext.
		return
	case errors.Is(err, runner.ErrConflict):
		s.logger.Info("auto sync fired while a run is active, skipping")
		s.events.Record(activity.NewEvent("autosync.skipped_busy", nil))
	default:
		s.logger.Warn("auto sync run did not start", logging.Error(err))
		s.events.Record(activity.NewEvent("autosync.trigger_failed", map[string]any{"error": err.Error()}))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.timer != nil {
		return
	}
	s.armLocked(firedAt.Add(interval))
}

func (s *AutoSync) armLocked(at time.Time) {
	s.stopTimerLocked()
	next := at
	s.next = &next
	s.tracker.SetNextSyncTime(&next)
	s.timer = time.AfterFunc(time.Until(at), s.fire)
}

func (s *AutoSync) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
