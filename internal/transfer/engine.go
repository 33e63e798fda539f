package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tidesync/internal/activity"
	"tidesync/internal/config"
	"tidesync/internal/logging"
	"tidesync/internal/remotefs"
	"tidesync/internal/status"
)

// ErrConnection marks a failure to reach the remote host. It is fatal to the
// run; per-file errors are not.
var ErrConnection = errors.New("remote connection failed")

const (
	// retryAttempts bounds download attempts per file.
	retryAttempts = 3
	// retryInitialBackoff seeds the exponential backoff between attempts.
	retryInitialBackoff = time.Second
)

// Engine executes mirror runs. Construct once and reuse; Run may only be
// invoked for one run at a time (the job runner enforces this).
type Engine struct {
	dialer  remotefs.Dialer
	tracker *status.Tracker
	logger  *slog.Logger
	events  activity.Logger
	errs    activity.ErrorSink

	// onFinalized receives every finalized transfer, e.g. for durable
	// history. Optional.
	onFinalized func(status.FileTransfer)
}

// NewEngine constructs a transfer engine.
func NewEngine(dialer remotefs.Dialer, tracker *status.Tracker, logger *slog.Logger, events activity.Logger, errs activity.ErrorSink) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if events == nil {
		events = activity.Nop{}
	}
	if errs == nil {
		errs = activity.Nop{}
	}
	return &Engine{
		dialer:  dialer,
		tracker: tracker,
		logger:  logger,
		events:  events,
		errs:    errs,
	}
}

// OnFinalized registers a hook invoked for every finalized transfer.
func (e *Engine) OnFinalized(fn func(status.FileTransfer)) {
	e.onFinalized = fn
}

// Run mirrors the configured remote tree. It returns ctx.Err() when the run
// was cancelled, ErrConnection when the host was unreachable, and nil
// otherwise; single-file failures are recorded but never fatal.
func (e *Engine) Run(ctx context.Context, cfg config.SftpConfig) error {
	e.tracker.SetPhase(status.StateConnecting, "Connecting to "+cfg.Host)
	e.logger.Info("connecting to remote host",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("remote_root", cfg.RemoteRoot),
	)

	fs, err := e.dialer.Dial(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer fs.Close()

	e.tracker.SetPhase(status.StateScanning, "Scanning remote tree")
	plan, err := e.scan(ctx, fs, cfg)
	if err != nil {
		return err
	}
	e.logger.Info("scan complete",
		slog.Int("files", len(plan)),
		slog.String("remote_root", cfg.RemoteRoot),
	)
	e.events.Record(activity.NewEvent("sync.scan_complete", map[string]any{
		"files":       len(plan),
		"remote_root": cfg.RemoteRoot,
	}))

	e.tracker.SetPhase(status.StateDownloading, "Downloading")
	total := len(plan)
	for index, item := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.downloadWithRetry(ctx, fs, item, index, total)
	}

	e.tracker.SetProgress(100)
	e.tracker.SetDownloadSpeed("")
	return ctx.Err()
}

// downloadWithRetry runs the bounded retry loop for one file. Exhausting
// retries records the failure and lets the run continue.
func (e *Engine) downloadWithRetry(ctx context.Context, fs remotefs.FS, item planItem, index, total int) {
	e.tracker.SetActiveFile(item.name, item.localPath)
	transferID := e.tracker.BeginTransfer(item.name, item.size, item.localPath)

	attempt := 0
	operation := func() error {
		attempt++
		err := e.downloadFile(ctx, fs, item, index, total)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		e.logger.Warn("download attempt failed",
			slog.String("file", item.remotePath),
			slog.Int("attempt", attempt),
			logging.Error(err),
		)
		return err
	}

	policy := backoff.WithContext(newRetryPolicy(), ctx)
	err := backoff.Retry(operation, policy)
	switch {
	case err == nil:
		e.finalize(transferID, status.TransferSuccess, "")
		e.tracker.AddStats(1, item.size, 0)
		e.events.Record(activity.NewEvent("transfer.recorded", map[string]any{
			"filename": item.name,
			"target":   item.localPath,
			"size":     item.size,
			"status":   string(status.TransferSuccess),
		}))
	case ctx.Err() != nil:
		e.finalize(transferID, status.TransferFailure, "transfer cancelled")
		e.events.Record(activity.NewEvent("transfer.cancelled", map[string]any{
			"filename": item.name,
		}))
	default:
		e.finalize(transferID, status.TransferFailure, err.Error())
		e.tracker.AddStats(0, 0, 1)
		e.tracker.SetLastError(fmt.Sprintf("%s - %v", item.remotePath, err))
		e.errs.RecordError(fmt.Sprintf("%s - %v", item.remotePath, err))
		e.events.Record(activity.NewEvent("transfer.recorded", map[string]any{
			"filename": item.name,
			"target":   item.localPath,
			"size":     item.size,
			"status":   string(status.TransferFailure),
			"error":    err.Error(),
		}))
	}
	e.tracker.SetDownloadSpeed("")
}

func (e *Engine) finalize(transferID string, result status.TransferStatus, message string) {
	record, ok := e.tracker.FinalizeTransfer(transferID, result, message)
	if ok && e.onFinalized != nil {
		e.onFinalized(record)
	}
}

func newRetryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialBackoff
	policy.RandomizationFactor = 0.2
	return backoff.WithMaxRetries(policy, retryAttempts-1)
}
