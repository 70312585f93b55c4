// Package engine drives a resolution pass: compute each video's language
// gap, gather candidates from the provider pool, score and rank them, and
// download the winners with failure demotion. Selections are handed to a
// sink for persistence.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"subscout/internal/blacklist"
	"subscout/internal/langgap"
	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/packcache"
	"subscout/internal/providers"
	"subscout/internal/scoring"
)

const (
	defaultVideoConcurrency = 2
)

// CandidateSource is what the engine needs from the provider pool.
type CandidateSource interface {
	ListCandidates(ctx context.Context, video *media.Video, langs []language.Language) []*providers.Candidate
	Download(ctx context.Context, candidate *providers.Candidate) error
	// Position returns the provider's priority index, used as the second
	// tie-break after the score.
	Position(name string) int
}

// Sink persists an accepted subtitle. Implementations decide the layout;
// the engine only guarantees Content is non-empty.
type Sink interface {
	Write(ctx context.Context, video *media.Video, selection Selected) error
}

// Selected is one accepted subtitle.
type Selected struct {
	VideoID     int64
	Provider    string
	CandidateID string
	Language    language.Language
	Score       int
	Release     string
	Content     []byte
	// ContentHash is the sha256 of Content, recorded for audit and dedup.
	ContentHash string
}

// Policy carries the per-run resolution settings.
type Policy struct {
	Languages                []language.Language
	OnlyOne                  bool
	IETFAsAlpha3             bool
	AudioMatchSatisfies      bool
	IncludeMetadataLanguages bool
	ExcludeHearingImpaired   bool
	MinScore                 int
	VideoConcurrency         int
	VideoTimeout             time.Duration
}

// Options wires the engine's collaborators.
type Options struct {
	Source    CandidateSource
	Blacklist *blacklist.Store
	Packs     *packcache.Store
	Sink      Sink
	Logger    *slog.Logger
}

// Engine resolves missing subtitles for batches of videos.
type Engine struct {
	source    CandidateSource
	blacklist *blacklist.Store
	packs     *packcache.Store
	sink      Sink
	logger    *slog.Logger
}

// New validates the collaborators and builds an engine.
func New(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, errors.New("engine: candidate source is required")
	}
	if opts.Blacklist == nil {
		return nil, errors.New("engine: blacklist store is required")
	}
	if opts.Packs == nil {
		return nil, errors.New("engine: pack cache is required")
	}
	return &Engine{
		source:    opts.Source,
		blacklist: opts.Blacklist,
		packs:     opts.Packs,
		sink:      opts.Sink,
		logger:    logging.NewComponentLogger(opts.Logger, "engine"),
	}, nil
}

// Resolve runs one pass over the videos and returns the accepted subtitles
// keyed by video id. Per-video failures are logged and isolated; the only
// error returned is a cancelled context.
func (e *Engine) Resolve(ctx context.Context, videos []*media.Video, policy Policy) (map[int64][]Selected, error) {
	runID := uuid.NewString()
	logger := e.logger.With(logging.String(logging.FieldRunID, runID))
	logger.Info("resolution pass started",
		logging.Int("videos", len(videos)),
		logging.Any("languages", language.Strings(policy.Languages)),
	)

	concurrency := policy.VideoConcurrency
	if concurrency <= 0 {
		concurrency = defaultVideoConcurrency
	}

	var (
		mu      sync.Mutex
		results = make(map[int64][]Selected)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, video := range videos {
		video := video
		g.Go(func() error {
			vctx := gctx
			if policy.VideoTimeout > 0 {
				var cancel context.CancelFunc
				vctx, cancel = context.WithTimeout(gctx, policy.VideoTimeout)
				defer cancel()
			}
			selected := e.resolveVideo(vctx, logger, video, policy)
			if len(selected) > 0 {
				mu.Lock()
				results[video.ID] = selected
				mu.Unlock()
			}
			// A per-video timeout only abandons that video; the pass stops
			// early only when the caller's context is gone.
			return gctx.Err()
		})
	}
	err := g.Wait()
	logger.Info("resolution pass finished", logging.Int("videos_with_selections", len(results)))
	if err != nil && ctx.Err() != nil {
		return results, fmt.Errorf("engine: pass interrupted: %w", err)
	}
	return results, nil
}

func (e *Engine) resolveVideo(ctx context.Context, logger *slog.Logger, video *media.Video, policy Policy) []Selected {
	vlog := logger.With(logging.Int64(logging.FieldVideoID, video.ID))

	missing, satisfied := langgap.Missing(video, policy.Languages, langgap.Policy{
		OnlyOne:                  policy.OnlyOne,
		IETFAsAlpha3:             policy.IETFAsAlpha3,
		AudioMatchSatisfies:      policy.AudioMatchSatisfies,
		IncludeMetadataLanguages: policy.IncludeMetadataLanguages,
	})
	if satisfied {
		vlog.Debug("no language gap; skipping search")
		return nil
	}

	candidates := e.source.ListCandidates(ctx, video, missing)
	if len(candidates) == 0 {
		vlog.Info("no candidates offered", logging.Any("missing", language.Strings(missing)))
		return nil
	}

	var selections []Selected
	for _, lang := range missing {
		ranked := e.rank(video, candidates, lang, policy)
		if len(ranked) == 0 {
			vlog.Info("no usable candidate for language",
				logging.String(logging.FieldLanguage, lang.String()),
			)
			continue
		}
		selection, ok := e.downloadBest(ctx, vlog, video, ranked)
		if !ok {
			continue
		}
		selections = append(selections, selection)
		video.AddSubtitleLanguage(lang)
		if policy.OnlyOne {
			break
		}
	}
	return selections
}

type rankedCandidate struct {
	candidate *providers.Candidate
	score     int
	position  int
}

// rank filters the language's candidates (blacklist first, then policy
// filters), scores the survivors, and sorts them: score descending, then
// configured provider order, then candidate id ascending for determinism.
func (e *Engine) rank(video *media.Video, candidates []*providers.Candidate, lang language.Language, policy Policy) []rankedCandidate {
	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if !cand.Language.Equal(lang) {
			continue
		}
		if e.blacklist.Contains(video.ID, lang, cand.Provider, cand.ID) {
			continue
		}
		if policy.ExcludeHearingImpaired && cand.HearingImpaired {
			continue
		}
		score := scoring.Score(cand.Matches, video)
		if score < policy.MinScore {
			continue
		}
		ranked = append(ranked, rankedCandidate{
			candidate: cand,
			score:     score,
			position:  e.source.Position(cand.Provider),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].position != ranked[j].position {
			return ranked[i].position < ranked[j].position
		}
		return ranked[i].candidate.ID < ranked[j].candidate.ID
	})
	return ranked
}

// downloadBest walks the ranking and returns the first candidate whose
// download succeeds. Every failed candidate is blacklisted so the next pass
// does not retry it; a pack whose archive lacks the episode additionally
// invalidates the cached archive.
func (e *Engine) downloadBest(ctx context.Context, logger *slog.Logger, video *media.Video, ranked []rankedCandidate) (Selected, bool) {
	for _, rc := range ranked {
		if ctx.Err() != nil {
			return Selected{}, false
		}
		cand := rc.candidate
		err := e.download(ctx, cand)
		if err == nil && len(cand.Content) == 0 {
			err = providers.Wrap(providers.ErrTransient, cand.Provider, "download", "empty subtitle content", nil)
		}
		if err == nil {
			sum := sha256.Sum256(cand.Content)
			logger.Info("subtitle accepted",
				logging.String(logging.FieldProvider, cand.Provider),
				logging.String(logging.FieldCandidate, cand.ID),
				logging.String(logging.FieldLanguage, cand.Language.String()),
				logging.Int("score", rc.score),
			)
			selection := Selected{
				VideoID:     video.ID,
				Provider:    cand.Provider,
				CandidateID: cand.ID,
				Language:    cand.Language,
				Score:       rc.score,
				Release:     cand.Release,
				Content:     cand.Content,
				ContentHash: hex.EncodeToString(sum[:]),
			}
			if e.sink != nil {
				if sinkErr := e.sink.Write(ctx, video, selection); sinkErr != nil {
					logger.Warn("sink write failed", logging.Error(sinkErr))
					return Selected{}, false
				}
			}
			return selection, true
		}

		logger.Warn("download failed; demoting candidate",
			logging.String(logging.FieldProvider, cand.Provider),
			logging.String(logging.FieldCandidate, cand.ID),
			logging.Error(err),
		)
		if addErr := e.blacklist.Add(ctx, video.ID, cand.Language, cand.Provider, cand.ID); addErr != nil {
			logger.Warn("blacklist update failed", logging.Error(addErr))
		}
		if errors.Is(err, providers.ErrArchiveSelection) && cand.PackFingerprint != "" {
			if invErr := e.packs.Invalidate(cand.PackFingerprint); invErr != nil {
				logger.Warn("pack invalidation failed", logging.Error(invErr))
			}
		}
	}
	return Selected{}, false
}

// download delegates to the source, holding the pack cache's fingerprint
// lock across the whole call for pack candidates so concurrent episodes
// fetch a shared archive exactly once.
func (e *Engine) download(ctx context.Context, cand *providers.Candidate) error {
	if cand.IsPack && cand.PackFingerprint != "" {
		unlock := e.packs.LockFingerprint(cand.PackFingerprint)
		defer unlock()
	}
	return e.source.Download(ctx, cand)
}
