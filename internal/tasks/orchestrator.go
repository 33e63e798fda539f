package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tidesync/internal/activity"
	"tidesync/internal/config"
	"tidesync/internal/logging"
	"tidesync/internal/mediaserver"
	"tidesync/internal/status"
)

// ErrNoTasks signals an orchestration run with nothing enabled to execute.
var ErrNoTasks = errors.New("no enabled jellyfin tasks selected")

// ErrNotTested guards against running tasks before connectivity was
// verified.
var ErrNotTested = errors.New("jellyfin connection has not been tested")

const defaultPollInterval = time.Second

// pollFailureLimit aborts a task after this many consecutive poll errors.
const pollFailureLimit = 3

// ClientFactory builds a media-server client for the given configuration.
type ClientFactory func(config.JellyfinConfig) mediaserver.Client

// Orchestrator executes the ordered task queue.
type Orchestrator struct {
	newClient    ClientFactory
	tracker      *status.Tracker
	logger       *slog.Logger
	events       activity.Logger
	errs         activity.ErrorSink
	pollInterval time.Duration
}

// NewOrchestrator constructs a task orchestrator. A nil factory uses the
// Jellyfin HTTP client.
func NewOrchestrator(factory ClientFactory, tracker *status.Tracker, logger *slog.Logger, events activity.Logger, errs activity.ErrorSink) *Orchestrator {
	if factory == nil {
		factory = func(cfg config.JellyfinConfig) mediaserver.Client {
			return mediaserver.NewFromConfig(cfg)
		}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if events == nil {
		events = activity.Nop{}
	}
	if errs == nil {
		errs = activity.Nop{}
	}
	return &Orchestrator{
		newClient:    factory,
		tracker:      tracker,
		logger:       logger,
		events:       events,
		errs:         errs,
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval overrides the cadence between task status checks.
func (o *Orchestrator) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		o.pollInterval = interval
	}
}

// Run executes the enabled selected tasks in ascending order. It returns
// ctx.Err() when stopped, and a task failure aborts the remaining queue.
func (o *Orchestrator) Run(ctx context.Context, cfg config.JellyfinConfig) error {
	if !cfg.Tested {
		return ErrNotTested
	}
	selected := cfg.EnabledTasks()
	if len(selected) == 0 {
		return ErrNoTasks
	}

	client := o.newClient(cfg)
	serverTasks, err := client.ListTasks(ctx, cfg.IncludeHiddenTasks)
	if err != nil {
		return fmt.Errorf("list server tasks: %w", err)
	}
	byKey := make(map[string]mediaserver.Task, len(serverTasks))
	byName := make(map[string]mediaserver.Task, len(serverTasks))
	for _, task := range serverTasks {
		byKey[task.Key] = task
		byName[task.Name] = task
	}

	total := len(selected)
	o.events.Record(activity.NewEvent("jellyfin.run_start", map[string]any{"total_tasks": total}))

	for index, selection := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		serverTask, ok := byKey[selection.Key]
		if !ok {
			// Key drift happens across server upgrades; fall back to the
			// display name before giving up.
			serverTask, ok = byName[selection.Name]
		}
		if !ok {
			return fmt.Errorf("task %q was not found on the server", selection.Name)
		}

		o.reportTask(selection.Name, "Starting", 0, index, total)
		o.logger.Info("triggering jellyfin task",
			slog.String("task", selection.Name),
			slog.Int("position", index+1),
			slog.Int("total", total),
		)
		o.events.Record(activity.NewEvent("jellyfin.task_start", map[string]any{
			"name":  selection.Name,
			"order": index + 1,
		}))

		if err := client.TriggerTask(ctx, serverTask.ID); err != nil {
			return fmt.Errorf("task %q: %w", selection.Name, err)
		}

		if err := o.pollUntilFinished(ctx, client, serverTask.ID, selection.Name, index, total); err != nil {
			return err
		}
	}

	o.tracker.SetProgress(100)
	o.events.Record(activity.NewEvent("jellyfin.run_finish", map[string]any{"total_tasks": total}))
	return nil
}

// pollUntilFinished watches one dispatched task. A stop request abandons
// the poll loop; the dispatched task is fire-and-forget on the server.
func (o *Orchestrator) pollUntilFinished(ctx context.Context, client mediaserver.Client, taskID, taskName string, index, total int) error {
	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("stop requested, leaving dispatched task to finish",
				slog.String("task", taskName),
			)
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}

		polled, err := client.PollTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			consecutiveErrors++
			if consecutiveErrors >= pollFailureLimit {
				return fmt.Errorf("task %q: poll failed: %w", taskName, err)
			}
			continue
		}
		consecutiveErrors = 0

		o.reportTask(taskName, polled.State, polled.Progress, index, total)
		if polled.Finished() {
			o.events.Record(activity.NewEvent("jellyfin.task_complete", map[string]any{
				"name":     taskName,
				"progress": polled.Progress,
				"state":    polled.State,
			}))
			return nil
		}
	}
}

// reportTask folds per-task progress into overall run progress:
// completed tasks plus the current task's fraction, over the total.
func (o *Orchestrator) reportTask(taskName, state string, taskProgress float64, index, total int) {
	if taskProgress < 0 {
		taskProgress = 0
	}
	if taskProgress > 100 {
		taskProgress = 100
	}
	overall := (float64(index) + taskProgress/100) / float64(total) * 100
	o.tracker.SetPhase(status.StateJellyfin, fmt.Sprintf("Jellyfin tasks (%d/%d) - %s", index+1, total, state))
	o.tracker.SetActiveFile(taskName, fmt.Sprintf("%s (%.0f%%)", state, taskProgress))
	o.tracker.SetProgress(int(overall))
}
