package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tidesync/internal/journal"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured mirror and the last sync outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			queryCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			lastSync := "never"
			if ts, ok, err := store.LastSyncTime(queryCtx); err == nil && ok {
				lastSync = ts.Local().Format("2006-01-02 15:04:05")
			}

			interval := "disabled"
			if cfg.Sftp.AutoSyncEnabled {
				interval = cfg.Sftp.SyncInterval().String()
			}

			rows := [][]string{
				{"Remote", fmt.Sprintf("%s@%s:%d%s", cfg.Sftp.Username, cfg.Sftp.Host, cfg.Sftp.Port, cfg.Sftp.RemoteRoot)},
				{"Local root", cfg.Sftp.LocalRoot},
				{"Auto sync", interval},
				{"Last sync", lastSync},
				{"Jellyfin server", cfg.Jellyfin.ServerURL},
				{"Jellyfin tested", yesNo(cfg.Jellyfin.Tested)},
				{"Enabled tasks", strconv.Itoa(len(cfg.Jellyfin.EnabledTasks()))},
				{"Journal", store.Path()},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}
