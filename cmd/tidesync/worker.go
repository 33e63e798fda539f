package main

import (
	"context"
	"log/slog"
	"time"

	"tidesync/internal/config"
	"tidesync/internal/journal"
	"tidesync/internal/logging"
	"tidesync/internal/mediaserver"
	"tidesync/internal/remotefs"
	"tidesync/internal/runner"
	"tidesync/internal/status"
	"tidesync/internal/tasks"
	"tidesync/internal/transfer"
)

// worker is the in-process wiring behind one-shot runs: the same engines the
// daemon drives, minus scheduler and config watching.
type worker struct {
	cfg     *config.Config
	store   *journal.Store
	tracker *status.Tracker
	runner  *runner.Runner
}

func (c *commandContext) newWorker(logger *slog.Logger) (*worker, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	store, err := journal.Open(cfg)
	if err != nil {
		return nil, err
	}

	tracker := status.NewTracker()
	provider := config.NewStaticProvider(*cfg)

	engine := transfer.NewEngine(remotefs.SFTPDialer{}, tracker, logger, store, store)
	engine.OnFinalized(func(tr status.FileTransfer) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.RecordTransfer(ctx, tr); err != nil {
			logger.Warn("unable to persist transfer record", logging.Error(err))
		}
	})

	orch := tasks.NewOrchestrator(func(jc config.JellyfinConfig) mediaserver.Client {
		return mediaserver.NewFromConfig(jc)
	}, tracker, logger, store, store)

	run := runner.New(provider, tracker, engine, orch, logger, store, store)
	run.OnSyncCompleted(func(ts time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SetLastSyncTime(ctx, ts); err != nil {
			logger.Warn("unable to persist last sync time", logging.Error(err))
		}
	})

	seedCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ts, ok, seedErr := store.LastSyncTime(seedCtx); seedErr == nil && ok {
		tracker.SetLastSyncTime(ts)
	}

	return &worker{cfg: cfg, store: store, tracker: tracker, runner: run}, nil
}

func (w *worker) Close() error {
	return w.store.Close()
}

func (c *commandContext) newCommandLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}
