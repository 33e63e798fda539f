package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tidesync/internal/journal"
	"tidesync/internal/status"
)

const timestampLayout = "2006-01-02 15:04:05"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently transferred files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, ctx, func(queryCtx context.Context, store *journal.Store) error {
				transfers, err := store.RecentTransfers(queryCtx, limit)
				if err != nil {
					return err
				}
				if len(transfers) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transfers recorded yet")
					return nil
				}

				rows := make([][]string, 0, len(transfers))
				for _, tr := range transfers {
					completed := ""
					if tr.CompletedAt != nil {
						completed = tr.CompletedAt.Local().Format(timestampLayout)
					}
					detail := ""
					if tr.Status == status.TransferFailure {
						detail = tr.ErrorMessage
					}
					rows = append(rows, []string{
						completed,
						tr.Filename,
						humanize.IBytes(uint64(tr.Size)),
						string(tr.Status),
						detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(),
					renderTable([]string{"Completed", "File", "Size", "State", "Error"}, rows, 3))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of transfers to show")
	return cmd
}

func newActivityCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the recent activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, ctx, func(queryCtx context.Context, store *journal.Store) error {
				entries, err := store.RecentEntries(queryCtx, limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No activity recorded yet")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					details := ""
					if len(entry.Details) > 0 {
						if encoded, err := json.Marshal(entry.Details); err == nil {
							details = string(encoded)
						}
					}
					rows = append(rows, []string{
						entry.CreatedAt.Local().Format(timestampLayout),
						entry.Level,
						entry.Action,
						details,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(),
					renderTable([]string{"Time", "Level", "Action", "Details"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries to show")
	return cmd
}

func withJournal(cmd *cobra.Command, cctx *commandContext, fn func(context.Context, *journal.Store) error) error {
	cfg, err := cctx.ensureConfig()
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
	return fn(queryCtx, store)
}
