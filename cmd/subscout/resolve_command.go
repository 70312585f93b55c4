package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"subscout/internal/blacklist"
	"subscout/internal/config"
	"subscout/internal/engine"
	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/packcache"
	"subscout/internal/pool"
	"subscout/internal/providers"

	_ "subscout/internal/providers/opensubtitles"
	_ "subscout/internal/providers/podnapisi"
	_ "subscout/internal/providers/supersubtitles"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var languagesFlag []string
	var outputDir string
	var onlyOne bool

	cmd := &cobra.Command{
		Use:   "resolve <manifest.json>",
		Short: "Resolve missing subtitles for the videos in a manifest",
		Long: `Resolve reads a scan manifest (a JSON array of video descriptors),
computes each video's language gap, queries the configured providers, and
downloads the best-scoring subtitle per missing language. Subtitles land
next to the video file as <name>.<lang>.srt unless --output-dir is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			videos, err := loadManifest(args[0])
			if err != nil {
				return err
			}
			if len(videos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Manifest is empty; nothing to resolve.")
				return nil
			}

			policy, err := buildPolicy(cfg, languagesFlag, onlyOne)
			if err != nil {
				return err
			}

			// One resolution run at a time: concurrent runs would race on
			// the blacklist and pack cache databases.
			runLock := flock.New(cfg.LockPath())
			locked, err := runLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another resolution run is in progress (lock: %s)", cfg.LockPath())
			}
			defer runLock.Unlock()

			bl, err := blacklist.Open(cfg.BlacklistPath())
			if err != nil {
				return err
			}
			defer bl.Close()
			packs, err := packcache.Open(cfg.PackCachePath(), logger)
			if err != nil {
				return err
			}
			defer packs.Close()

			p, err := pool.New(pool.Options{
				Providers:    cfg.Engine.Providers,
				Settings:     providerSettings(cfg),
				MaxAttempts:  cfg.Pool.MaxAttempts,
				RetryDelay:   time.Duration(cfg.Pool.RetryDelaySeconds) * time.Second,
				QueryTimeout: time.Duration(cfg.Pool.QueryTimeoutSeconds) * time.Second,
				Hooks: pool.Hooks{
					PreDownload:  packs.PreDownload,
					PostDownload: packs.PostDownload,
					Throttled: func(provider string, wait time.Duration) {
						logger.Warn("provider throttled",
							logging.String(logging.FieldProvider, provider),
							logging.Duration("wait", wait),
						)
					},
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			defer p.Close()

			eng, err := engine.New(engine.Options{
				Source:    p,
				Blacklist: bl,
				Packs:     packs,
				Sink:      newFileSink(outputDir, logger),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			results, err := eng.Resolve(cmd.Context(), videos, policy)
			if err != nil {
				return err
			}
			printResults(cmd, videos, results)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&languagesFlag, "languages", "l", nil, "Override configured languages (e.g. en,pt-BR,hu:forced)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Write subtitles here instead of next to the videos")
	cmd.Flags().BoolVar(&onlyOne, "only-one", false, "Stop after the first subtitle in any language")
	return cmd
}

func buildPolicy(cfg *config.Config, languagesFlag []string, onlyOne bool) (engine.Policy, error) {
	langs, err := cfg.RequestedLanguages()
	if err != nil {
		return engine.Policy{}, err
	}
	if len(languagesFlag) > 0 {
		langs, err = language.ParseList(languagesFlag)
		if err != nil {
			return engine.Policy{}, fmt.Errorf("parse --languages: %w", err)
		}
	}
	return engine.Policy{
		Languages:                langs,
		OnlyOne:                  cfg.Engine.OnlyOne || onlyOne,
		IETFAsAlpha3:             cfg.Engine.IETFAsAlpha3,
		AudioMatchSatisfies:      cfg.Engine.AudioMatchSatisfies,
		IncludeMetadataLanguages: cfg.Engine.IncludeMetadataLanguages,
		ExcludeHearingImpaired:   cfg.Engine.ExcludeHearingImpaired,
		MinScore:                 cfg.Engine.MinScore,
		VideoConcurrency:         cfg.Engine.VideoConcurrency,
		VideoTimeout:             time.Duration(cfg.Engine.VideoTimeoutSeconds) * time.Second,
	}, nil
}

func providerSettings(cfg *config.Config) map[string]providers.Settings {
	settings := make(map[string]providers.Settings, len(cfg.Providers))
	for name, p := range cfg.Providers {
		settings[name] = providers.Settings{
			APIKey:            p.APIKey,
			Username:          p.Username,
			Password:          p.Password,
			UserAgent:         p.UserAgent,
			UserToken:         p.UserToken,
			BaseURL:           p.BaseURL,
			RequestsPerMinute: p.RequestsPerMinute,
		}
	}
	return settings
}

func loadManifest(path string) ([]*media.Video, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	return media.LoadManifest(expanded)
}

func printResults(cmd *cobra.Command, videos []*media.Video, results map[int64][]engine.Selected) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No subtitles downloaded.")
		return
	}

	byID := make(map[int64]*media.Video, len(videos))
	ids := make([]int64, 0, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
		ids = append(ids, v.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([][]string, 0, len(results))
	total := 0
	for _, id := range ids {
		for _, sel := range results[id] {
			title := byID[id].Title
			if byID[id].IsEpisode() {
				title = fmt.Sprintf("%s S%02dE%02d", byID[id].Series, byID[id].Season, byID[id].Episode)
			}
			rows = append(rows, []string{
				title,
				sel.Language.String(),
				sel.Provider,
				strconv.Itoa(sel.Score),
				sel.Release,
			})
			total++
		}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Video", "Language", "Provider", "Score", "Release"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Downloaded %d subtitle(s) for %d video(s).\n", total, len(results))
}
