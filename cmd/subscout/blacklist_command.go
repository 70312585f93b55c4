package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"subscout/internal/blacklist"
)

func newBlacklistCommand(ctx *commandContext) *cobra.Command {
	blacklistCmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Inspect or clear the rejected-candidate blacklist",
	}
	blacklistCmd.AddCommand(newBlacklistListCommand(ctx))
	blacklistCmd.AddCommand(newBlacklistClearCommand(ctx))
	return blacklistCmd
}

func newBlacklistListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blacklisted candidates, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := blacklist.Open(cfg.BlacklistPath())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Blacklist is empty.")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.VideoID, 10),
					e.Language.String(),
					e.Provider,
					e.CandidateID,
					e.AddedAt.Local().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Video", "Language", "Provider", "Candidate", "Added"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newBlacklistClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every blacklist entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := blacklist.Open(cfg.BlacklistPath())
			if err != nil {
				return err
			}
			defer store.Close()

			count := store.Len()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d blacklist entries.\n", count)
			return nil
		},
	}
}
