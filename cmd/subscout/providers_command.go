package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"subscout/internal/providers"

	_ "subscout/internal/providers/opensubtitles"
	_ "subscout/internal/providers/podnapisi"
	_ "subscout/internal/providers/supersubtitles"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List known providers and their configuration state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			position := make(map[string]int, len(cfg.Engine.Providers))
			for i, name := range cfg.Engine.Providers {
				position[name] = i + 1
			}

			rows := make([][]string, 0, len(providers.Names()))
			for _, name := range providers.Names() {
				enabled := "-"
				if pos, ok := position[name]; ok {
					enabled = strconv.Itoa(pos)
				}
				settings := cfg.Providers[name]
				credentials := "none required"
				if name == "opensubtitles" {
					if settings.APIKey != "" {
						credentials = "api key set"
					} else {
						credentials = "api key missing"
					}
				}
				throttle := "unlimited"
				if settings.RequestsPerMinute > 0 {
					throttle = fmt.Sprintf("%d/min", settings.RequestsPerMinute)
				}
				rows = append(rows, []string{name, enabled, credentials, throttle})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Provider", "Priority", "Credentials", "Throttle"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
}
