package mediaserver

import "context"

// Task is one maintenance task known to the server.
type Task struct {
	ID          string
	Key         string
	Name        string
	Description string
	Hidden      bool
}

// TaskStatus reports execution progress for a running task.
type TaskStatus struct {
	Progress float64
	State    string
}

// Client is the capability the orchestrator needs from a media server.
type Client interface {
	// ListTasks enumerates the server's scheduled tasks.
	ListTasks(ctx context.Context, includeHidden bool) ([]Task, error)
	// TriggerTask starts remote execution of the given task.
	TriggerTask(ctx context.Context, taskID string) error
	// PollTask reports the current progress of the given task.
	PollTask(ctx context.Context, taskID string) (TaskStatus, error)
}

// Finished reports whether a polled status indicates the task has completed.
// A progress of 100 or a terminal state string both count.
func (s TaskStatus) Finished() bool {
	if s.Progress >= 100 {
		return true
	}
	switch normalizeState(s.State) {
	case "idle", "completed", "completedwitherrors", "cancelled", "aborted":
		return true
	}
	return false
}
