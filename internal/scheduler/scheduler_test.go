package scheduler

import (
	"sync"
	"testing"
	"time"

	"tidesync/internal/config"
	"tidesync/internal/runner"
	"tidesync/internal/status"
)

type fakeStarter struct {
	mu    sync.Mutex
	calls []runner.Kind
	err   error
}

func (f *fakeStarter) Start(kind runner.Kind) (status.SyncStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	return status.SyncStatus{}, f.err
}

func (f *fakeStarter) startCalls() []runner.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Kind(nil), f.calls...)
}

func autoSyncConfig(intervalMinutes int) config.SftpConfig {
	return config.SftpConfig{
		Host:                "seedbox.example.test",
		Username:            "mirror",
		Password:            "secret",
		RemoteRoot:          "/srv/media",
		LocalRoot:           "/library",
		AutoSyncEnabled:     true,
		SyncIntervalMinutes: intervalMinutes,
	}
}

func newTestScheduler(starter Starter, now time.Time) (*AutoSync, *status.Tracker) {
	tracker := status.NewTracker()
	s := New(starter, tracker, nil, nil)
	s.now = func() time.Time { return now }
	return s, tracker
}

func TestRearmComputesNextFromInterval(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s, tracker := newTestScheduler(&fakeStarter{}, now)
	defer s.Disarm()

	s.Rearm(autoSyncConfig(15))

	next := s.NextFireTime()
	want := now.Add(15 * time.Minute)
	if next == nil || !next.Equal(want) {
		t.Fatalf("got %v want %v", next, want)
	}
	snap := tracker.Snapshot()
	if snap.NextSyncTime == nil || *snap.NextSyncTime != want.Unix() {
		t.Fatalf("next sync time not published: %+v", snap.NextSyncTime)
	}
}

func TestRearmUsesFutureStartAfterAsBaseline(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(&fakeStarter{}, now)
	defer s.Disarm()

	cfg := autoSyncConfig(30)
	cfg.StartAfter = "2026-08-24T18:00:00Z"
	s.Rearm(cfg)

	want := time.Date(2026, 8, 24, 18, 30, 0, 0, time.UTC)
	next := s.NextFireTime()
	if next == nil || !next.Equal(want) {
		t.Fatalf("got %v want %v", next, want)
	}
}

func TestRearmDisabledGoesDark(t *testing.T) {
	now := time.Now()
	s, tracker := newTestScheduler(&fakeStarter{}, now)

	s.Rearm(autoSyncConfig(15))
	if s.NextFireTime() == nil {
		t.Fatal("expected an armed timer")
	}

	cfg := autoSyncConfig(15)
	cfg.AutoSyncEnabled = false
	s.Rearm(cfg)

	if s.NextFireTime() != nil {
		t.Fatal("disabled scheduler must not stay armed")
	}
	if tracker.Snapshot().NextSyncTime != nil {
		t.Fatal("next sync time must be cleared when disabled")
	}
}

func TestScheduleNextWhileDisabledReturnsNil(t *testing.T) {
	s, _ := newTestScheduler(&fakeStarter{}, time.Now())
	if s.ScheduleNext() != nil {
		t.Fatal("disabled scheduler must not schedule")
	}
}

func TestScheduleNextArmsOneIntervalOut(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(&fakeStarter{}, now)
	defer s.Disarm()

	s.Rearm(autoSyncConfig(10))
	next := s.ScheduleNext()

	want := now.Add(10 * time.Minute)
	if next == nil || !next.Equal(want) {
		t.Fatalf("got %v want %v", next, want)
	}
	if armed := s.NextFireTime(); armed == nil || !armed.Equal(want) {
		t.Fatalf("timer not re-armed: %v", armed)
	}
}

func TestFireSkipsBusyWorkerAndRearmsFullInterval(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	starter := &fakeStarter{err: runner.ErrConflict}
	s, _ := newTestScheduler(starter, now)
	defer s.Disarm()

	s.Rearm(autoSyncConfig(10))
	firedAt := *s.NextFireTime()

	s.fire()

	calls := starter.startCalls()
	if len(calls) != 1 || calls[0] != runner.KindSync {
		t.Fatalf("expected one sync dispatch, got %v", calls)
	}
	want := firedAt.Add(10 * time.Minute)
	next := s.NextFireTime()
	if next == nil || !next.Equal(want) {
		t.Fatalf("skipped fire must re-arm a full interval out: got %v want %v", next, want)
	}
}

func TestFireSuccessLeavesRearmToRunCompletion(t *testing.T) {
	starter := &fakeStarter{}
	s, _ := newTestScheduler(starter, time.Now())
	defer s.Disarm()

	s.Rearm(autoSyncConfig(10))
	s.fire()

	if got := len(starter.startCalls()); got != 1 {
		t.Fatalf("expected one dispatch, got %d", got)
	}
	s.mu.Lock()
	armed := s.timer != nil
	s.mu.Unlock()
	if armed {
		t.Fatal("successful dispatch must not re-arm; the run's completion does")
	}
}

func TestFireAfterDisarmIsNoOp(t *testing.T) {
	starter := &fakeStarter{}
	s, _ := newTestScheduler(starter, time.Now())

	s.Rearm(autoSyncConfig(10))
	s.Disarm()
	s.fire()

	if got := len(starter.startCalls()); got != 0 {
		t.Fatalf("disarmed scheduler must not dispatch, got %d calls", got)
	}
}

func TestEnsureStartOnRestartTriggersImmediateRun(t *testing.T) {
	starter := &fakeStarter{}
	s, _ := newTestScheduler(starter, time.Now())
	defer s.Disarm()

	s.EnsureStartOnRestart(autoSyncConfig(10))

	calls := starter.startCalls()
	if len(calls) != 1 || calls[0] != runner.KindSync {
		t.Fatalf("expected an immediate sync dispatch, got %v", calls)
	}
	if s.NextFireTime() == nil {
		t.Fatal("restart must arm the timer")
	}
}

func TestEnsureStartOnRestartDisabledStaysDark(t *testing.T) {
	starter := &fakeStarter{}
	s, _ := newTestScheduler(starter, time.Now())

	cfg := autoSyncConfig(10)
	cfg.AutoSyncEnabled = false
	s.EnsureStartOnRestart(cfg)

	if got := len(starter.startCalls()); got != 0 {
		t.Fatalf("disabled auto sync must not dispatch, got %d calls", got)
	}
	if s.NextFireTime() != nil {
		t.Fatal("disabled auto sync must not arm")
	}
}
