package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"subscout/internal/logging"
	"subscout/internal/packcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the season pack archive cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached archive count and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := packcache.Open(cfg.PackCachePath(), logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			count, size, err := store.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d archive(s), %.1f MiB\n", count, float64(size)/(1024*1024))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := packcache.Open(cfg.PackCachePath(), logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			count, _, err := store.Stats()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached archive(s).\n", count)
			return nil
		},
	}
}
