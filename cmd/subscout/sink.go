package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"subscout/internal/engine"
	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
)

// fileSink writes accepted subtitles next to their video file, or into a
// fixed directory when one is configured.
type fileSink struct {
	outputDir string
	logger    *slog.Logger
}

func newFileSink(outputDir string, logger *slog.Logger) *fileSink {
	return &fileSink{
		outputDir: strings.TrimSpace(outputDir),
		logger:    logging.NewComponentLogger(logger, "sink"),
	}
}

func (s *fileSink) Write(_ context.Context, video *media.Video, sel engine.Selected) error {
	target := s.targetPath(video, sel.Language)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("sink: create directory: %w", err)
	}
	if err := os.WriteFile(target, sel.Content, 0o644); err != nil {
		return fmt.Errorf("sink: write subtitle: %w", err)
	}
	s.logger.Info("subtitle written",
		logging.String("path", target),
		logging.String(logging.FieldLanguage, sel.Language.String()),
		logging.String(logging.FieldProvider, sel.Provider),
	)
	return nil
}

// targetPath derives <video base>.<lang>[.forced].srt in the output
// directory or beside the video.
func (s *fileSink) targetPath(video *media.Video, lang language.Language) string {
	base := filepath.Base(video.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = fmt.Sprintf("video-%d", video.ID)
	}

	suffix := lang.Alpha3
	if lang.Country != "" {
		suffix += "-" + lang.Country
	}
	if lang.Forced {
		suffix += ".forced"
	}
	name := base + "." + suffix + ".srt"

	dir := s.outputDir
	if dir == "" {
		dir = filepath.Dir(video.Path)
	}
	return filepath.Join(dir, name)
}
