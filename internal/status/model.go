package status

import "time"

// State identifies the worker's position in the job state machine.
type State string

const (
	StateIdle        State = "idle"
	StateConnecting  State = "connecting"
	StateScanning    State = "scanning"
	StateDownloading State = "downloading"
	StateStopping    State = "stopping"
	StateError       State = "error"
	StateJellyfin    State = "jellyfin"
)

// TransferStatus marks the lifecycle of a single file transfer.
type TransferStatus string

const (
	TransferInProgress TransferStatus = "in-progress"
	TransferSuccess    TransferStatus = "success"
	TransferFailure    TransferStatus = "failure"
)

// Stats accumulates counters for the current (or most recent) run.
type Stats struct {
	FilesDownloaded int   `json:"files_downloaded"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
	Errors          int   `json:"errors"`
}

// FileTransfer records one mirrored file. A transfer is created in-progress
// and finalized exactly once to success or failure; it is never mutated
// afterwards.
type FileTransfer struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	Size         int64          `json:"size"`
	TargetPath   string         `json:"target_path"`
	Status       TransferStatus `json:"status"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// SyncStatus is the externally visible worker state. Timestamps are epoch
// seconds to match what status consumers historically expect.
type SyncStatus struct {
	State           State          `json:"state"`
	Message         string         `json:"message"`
	ActiveFile      string         `json:"active_file,omitempty"`
	TargetPath      string         `json:"target_path,omitempty"`
	Progress        int            `json:"progress"`
	DownloadSpeed   string         `json:"download_speed,omitempty"`
	Stats           Stats          `json:"stats"`
	RecentTransfers []FileTransfer `json:"recent_transfers"`
	LastError       string         `json:"last_error,omitempty"`
	LastSyncTime    *int64         `json:"last_sync_time,omitempty"`
	NextSyncTime    *int64         `json:"next_sync_time,omitempty"`
}
