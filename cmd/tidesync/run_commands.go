package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tidesync/internal/mediaserver"
	"tidesync/internal/runner"
	"tidesync/internal/status"
)

const progressPollInterval = 250 * time.Millisecond

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror the remote tree once, in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			final, err := runForeground(cmd, ctx, runner.KindSync)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloaded %d file(s), %s",
				final.Stats.FilesDownloaded,
				humanize.IBytes(uint64(final.Stats.BytesDownloaded)))
			if final.Stats.Errors > 0 {
				fmt.Fprintf(out, ", %d error(s)", final.Stats.Errors)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newJellyfinCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jellyfin",
		Short: "Run the selected Jellyfin maintenance tasks once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := runForeground(cmd, ctx, runner.KindJellyfin); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Jellyfin tasks completed")
			return nil
		},
	}
	cmd.AddCommand(newJellyfinTestCommand(ctx))
	return cmd
}

func newJellyfinTestCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify the Jellyfin connection and list available tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Jellyfin.ServerURL == "" || cfg.Jellyfin.APIKey == "" {
				return fmt.Errorf("jellyfin.server_url and jellyfin.api_key must be configured")
			}

			client := mediaserver.NewFromConfig(cfg.Jellyfin)
			queryCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tasks, err := client.ListTasks(queryCtx, cfg.Jellyfin.IncludeHiddenTasks)
			if err != nil {
				return fmt.Errorf("jellyfin connection failed: %w", err)
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				rows = append(rows, []string{task.Key, task.Name, yesNo(task.Hidden)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s, %d task(s) available\n", cfg.Jellyfin.ServerURL, len(tasks))
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Key", "Name", "Hidden"}, rows))
			}
			if !cfg.Jellyfin.Tested {
				fmt.Fprintln(out, "Set jellyfin.tested = true in the config to enable task runs.")
			}
			return nil
		},
	}
}

// runForeground executes one run to completion, streaming progress to the
// terminal. Ctrl-C requests a cooperative stop and waits for the run to wind
// down.
func runForeground(cmd *cobra.Command, cctx *commandContext, kind runner.Kind) (status.SyncStatus, error) {
	logger, err := cctx.newCommandLogger()
	if err != nil {
		return status.SyncStatus{}, err
	}
	w, err := cctx.newWorker(logger)
	if err != nil {
		return status.SyncStatus{}, err
	}
	defer w.Close()

	if _, err := w.runner.Start(kind); err != nil {
		return status.SyncStatus{}, err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	display := newProgressDisplay(cmd.OutOrStdout())
	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	interrupt := sigCtx.Done()
	for w.runner.Busy() {
		select {
		case <-interrupt:
			w.runner.Stop()
			interrupt = nil
		case <-ticker.C:
		}
		display.update(w.runner.Status())
	}
	w.runner.Wait()
	display.finish()

	final := w.runner.Status()
	if final.State == status.StateError {
		return final, fmt.Errorf("%s: %s", final.Message, final.LastError)
	}
	return final, nil
}

// progressDisplay redraws a single status line on terminals and degrades to
// printing changed lines on pipes.
type progressDisplay struct {
	w        io.Writer
	terminal bool
	last     string
}

func newProgressDisplay(w io.Writer) *progressDisplay {
	d := &progressDisplay{w: w}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		d.terminal = true
	}
	return d
}

func (d *progressDisplay) update(snap status.SyncStatus) {
	line := formatProgress(snap)
	if line == d.last {
		return
	}
	d.last = line
	if d.terminal {
		fmt.Fprintf(d.w, "\r\x1b[K%s", line)
		return
	}
	fmt.Fprintln(d.w, line)
}

func (d *progressDisplay) finish() {
	if d.terminal && d.last != "" {
		fmt.Fprintln(d.w)
	}
}

func formatProgress(snap status.SyncStatus) string {
	line := fmt.Sprintf("[%3d%%] %s", snap.Progress, snap.Message)
	if snap.ActiveFile != "" {
		line += " - " + snap.ActiveFile
	}
	if snap.DownloadSpeed != "" {
		line += " (" + snap.DownloadSpeed + ")"
	}
	return line
}
