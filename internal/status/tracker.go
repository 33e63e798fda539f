package status

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecentTransferLimit caps the in-memory transfer history exposed through
// status snapshots.
const RecentTransferLimit = 200

// Tracker guards the singleton SyncStatus behind one mutex. The active
// engine is the sole mutator at any instant; Snapshot may be called from any
// goroutine.
type Tracker struct {
	mu        sync.Mutex
	cur       SyncStatus
	transfers []FileTransfer
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{
		cur: SyncStatus{State: StateIdle, Message: "Idle"},
	}
}

// Snapshot returns a deep copy of the current status.
func (t *Tracker) Snapshot() SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.cur
	snap.RecentTransfers = make([]FileTransfer, len(t.transfers))
	copy(snap.RecentTransfers, t.transfers)
	if t.cur.LastSyncTime != nil {
		v := *t.cur.LastSyncTime
		snap.LastSyncTime = &v
	}
	if t.cur.NextSyncTime != nil {
		v := *t.cur.NextSyncTime
		snap.NextSyncTime = &v
	}
	return snap
}

// SetPhase moves the status to the given state with a human-readable
// message.
func (t *Tracker) SetPhase(state State, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.State = state
	t.cur.Message = message
}

// SetStopping marks the run as stopping. It is a no-op once the run has
// already reached a terminal state, so a late Stop cannot strand the status.
func (t *Tracker) SetStopping(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.cur.State {
	case StateIdle, StateError:
		return
	}
	t.cur.State = StateStopping
	t.cur.Message = message
}

// State returns only the current state value.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur.State
}

// BeginRun resets per-run fields ahead of a new engine execution.
func (t *Tracker) BeginRun(state State, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.State = state
	t.cur.Message = message
	t.cur.Progress = 0
	t.cur.ActiveFile = ""
	t.cur.TargetPath = ""
	t.cur.DownloadSpeed = ""
	t.cur.LastError = ""
	t.cur.Stats = Stats{}
}

// FinishRun clears transient fields and returns the worker to idle.
func (t *Tracker) FinishRun(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.State = StateIdle
	t.cur.Message = message
	t.cur.Progress = 0
	t.cur.ActiveFile = ""
	t.cur.TargetPath = ""
	t.cur.DownloadSpeed = ""
}

// FailRun records a fatal run error. The error state stays visible as the
// terminal annotation of the finished run; it never blocks the next Start.
func (t *Tracker) FailRun(message, lastError string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.State = StateError
	t.cur.Message = message
	t.cur.LastError = lastError
	t.cur.Progress = 0
	t.cur.ActiveFile = ""
	t.cur.TargetPath = ""
	t.cur.DownloadSpeed = ""
}

// SetActiveFile publishes the file currently being worked on.
func (t *Tracker) SetActiveFile(name, targetPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.ActiveFile = name
	t.cur.TargetPath = targetPath
}

// SetProgress updates overall run progress. Values are clamped to [0,100]
// and never move backwards within a run.
func (t *Tracker) SetProgress(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent > t.cur.Progress {
		t.cur.Progress = percent
	}
}

// SetDownloadSpeed publishes a humanized transfer rate, or clears it when
// empty.
func (t *Tracker) SetDownloadSpeed(speed string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.DownloadSpeed = speed
}

// SetLastError records a non-fatal error message without changing state.
func (t *Tracker) SetLastError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.LastError = message
}

// SetLastSyncTime records the completion time of the most recent successful
// sync run.
func (t *Tracker) SetLastSyncTime(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	epoch := ts.Unix()
	t.cur.LastSyncTime = &epoch
}

// LastSyncTime reports the recorded last successful sync, if any.
func (t *Tracker) LastSyncTime() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur.LastSyncTime == nil {
		return time.Time{}, false
	}
	return time.Unix(*t.cur.LastSyncTime, 0), true
}

// SetNextSyncTime publishes the scheduler's next fire time. A nil value
// clears the field (auto sync disabled).
func (t *Tracker) SetNextSyncTime(ts *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts == nil {
		t.cur.NextSyncTime = nil
		return
	}
	epoch := ts.Unix()
	t.cur.NextSyncTime = &epoch
}

// AddStats bumps the per-run counters.
func (t *Tracker) AddStats(files int, bytes int64, errors int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Stats.FilesDownloaded += files
	t.cur.Stats.BytesDownloaded += bytes
	t.cur.Stats.Errors += errors
}

// Stats returns the current run counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur.Stats
}

// BeginTransfer registers an in-progress transfer at the head of the recent
// list and returns its identifier for later finalization.
func (t *Tracker) BeginTransfer(filename string, size int64, targetPath string) string {
	record := FileTransfer{
		ID:         uuid.NewString(),
		Filename:   filename,
		Size:       size,
		TargetPath: targetPath,
		Status:     TransferInProgress,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transfers = append([]FileTransfer{record}, t.transfers...)
	if len(t.transfers) > RecentTransferLimit {
		t.transfers = t.transfers[:RecentTransferLimit]
	}
	return record.ID
}

// FinalizeTransfer resolves an in-progress transfer to success or failure.
// Already-finalized records are left untouched.
func (t *Tracker) FinalizeTransfer(id string, result TransferStatus, errorMessage string) (FileTransfer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.transfers {
		if t.transfers[i].ID != id {
			continue
		}
		if t.transfers[i].Status != TransferInProgress {
			return t.transfers[i], false
		}
		now := time.Now().UTC()
		t.transfers[i].Status = result
		t.transfers[i].CompletedAt = &now
		t.transfers[i].ErrorMessage = errorMessage
		return t.transfers[i], true
	}
	return FileTransfer{}, false
}

// InProgressTransfers reports how many transfers have not been finalized.
func (t *Tracker) InProgressTransfers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, tr := range t.transfers {
		if tr.Status == TransferInProgress {
			count++
		}
	}
	return count
}
