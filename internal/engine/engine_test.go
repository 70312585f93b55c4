package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"subscout/internal/blacklist"
	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/packcache"
	"subscout/internal/providers"
	"subscout/internal/testsupport"
)

// fakeSource scripts the provider pool for engine tests.
type fakeSource struct {
	order     []string
	list      func(video *media.Video) []*providers.Candidate
	download  func(ctx context.Context, cand *providers.Candidate) error
	listCalls atomic.Int32
}

func (f *fakeSource) ListCandidates(_ context.Context, video *media.Video, _ []language.Language) []*providers.Candidate {
	f.listCalls.Add(1)
	if f.list == nil {
		return nil
	}
	return f.list(video)
}

func (f *fakeSource) Download(ctx context.Context, cand *providers.Candidate) error {
	if f.download == nil {
		cand.Content = []byte("1\n00:00:01,000 --> 00:00:02,000\nok\n")
		return nil
	}
	return f.download(ctx, cand)
}

func (f *fakeSource) Position(name string) int {
	for i, p := range f.order {
		if p == name {
			return i
		}
	}
	return len(f.order)
}

func newEngine(t *testing.T, source CandidateSource) (*Engine, *blacklist.Store, *packcache.Store) {
	t.Helper()
	bl, packs := testsupport.OpenStores(t, testsupport.NewConfig(t))
	e, err := New(Options{Source: source, Blacklist: bl, Packs: packs, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, bl, packs
}

func movieVideo(id int64) *media.Video {
	return &media.Video{ID: id, Path: "/media/heat.mkv", Title: "Heat", Year: 1995}
}

func titleMatch() media.Matches {
	m := media.NewMatches()
	m.Add(media.MatchTitle, media.MatchYear)
	return m
}

var eng = language.MustParse("en")

func TestResolveTieBreaksOnProviderOrderThenID(t *testing.T) {
	source := &fakeSource{
		order: []string{"first", "second"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{
				{Provider: "second", ID: "b", Language: eng, Matches: titleMatch()},
				{Provider: "first", ID: "z", Language: eng, Matches: titleMatch()},
				{Provider: "first", ID: "a", Language: eng, Matches: titleMatch()},
			}
		},
	}
	e, _, _ := newEngine(t, source)
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	selected := results[1]
	if len(selected) != 1 {
		t.Fatalf("got %d selections", len(selected))
	}
	if selected[0].Provider != "first" || selected[0].CandidateID != "a" {
		t.Fatalf("tie-break chose %s/%s, want first/a", selected[0].Provider, selected[0].CandidateID)
	}
	if selected[0].ContentHash == "" {
		t.Fatal("content hash not recorded")
	}
}

func TestResolveSkipsBlacklistedCandidates(t *testing.T) {
	source := &fakeSource{
		order: []string{"first"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{
				{Provider: "first", ID: "banned", Language: eng, Matches: titleMatch()},
				{Provider: "first", ID: "clean", Language: eng, Matches: titleMatch()},
			}
		},
	}
	e, bl, _ := newEngine(t, source)
	if err := bl.Add(context.Background(), 1, eng, "first", "banned"); err != nil {
		t.Fatalf("blacklist.Add: %v", err)
	}
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := results[1][0].CandidateID; got != "clean" {
		t.Fatalf("selected %q, want the non-blacklisted candidate", got)
	}
}

func TestResolveDemotesFailedDownloads(t *testing.T) {
	better := titleMatch()
	better.Add(media.MatchReleaseGroup)
	source := &fakeSource{
		order: []string{"first"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{
				{Provider: "first", ID: "broken", Language: eng, Matches: better},
				{Provider: "first", ID: "works", Language: eng, Matches: titleMatch()},
			}
		},
		download: func(_ context.Context, cand *providers.Candidate) error {
			if cand.ID == "broken" {
				return providers.Wrap(providers.ErrTransient, "first", "download", "boom", nil)
			}
			cand.Content = []byte("payload")
			return nil
		},
	}
	e, bl, _ := newEngine(t, source)
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := results[1][0].CandidateID; got != "works" {
		t.Fatalf("selected %q, want failover to the runner-up", got)
	}
	if !bl.Contains(1, eng, "first", "broken") {
		t.Fatal("failed candidate not blacklisted")
	}
}

func TestResolveArchiveSelectionInvalidatesPack(t *testing.T) {
	const fingerprint = "supersubtitles:7"
	source := &fakeSource{
		order: []string{"supersubtitles"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{{
				Provider:        "supersubtitles",
				ID:              "pack-entry",
				Language:        eng,
				Matches:         titleMatch(),
				IsPack:          true,
				PackFingerprint: fingerprint,
			}}
		},
		download: func(context.Context, *providers.Candidate) error {
			return providers.Wrap(providers.ErrArchiveSelection, "supersubtitles", "download", "episode missing", nil)
		},
	}
	e, bl, packs := newEngine(t, source)
	if err := packs.Save(fingerprint, []byte("stale archive")); err != nil {
		t.Fatalf("packs.Save: %v", err)
	}
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("unexpected selections: %v", results)
	}
	if !bl.Contains(1, eng, "supersubtitles", "pack-entry") {
		t.Fatal("pack candidate not blacklisted")
	}
	if _, ok, _ := packs.Load(fingerprint); ok {
		t.Fatal("unusable archive still cached")
	}
}

// Concurrent episodes drawing from the same pack must trigger exactly one
// archive fetch: the engine's fingerprint lock plus the cache hooks turn the
// rest into cache hits.
func TestResolvePackFetchedOncePerFingerprint(t *testing.T) {
	const fingerprint = "supersubtitles:season"
	var fetches atomic.Int32
	var packs *packcache.Store
	source := &fakeSource{
		order: []string{"supersubtitles"},
		list: func(video *media.Video) []*providers.Candidate {
			return []*providers.Candidate{{
				Provider:        "supersubtitles",
				ID:              "pack-" + video.Path,
				Language:        eng,
				Matches:         titleMatch(),
				IsPack:          true,
				PackFingerprint: fingerprint,
			}}
		},
		download: func(ctx context.Context, cand *providers.Candidate) error {
			// Mirror the pool's hook sequence around the adapter call.
			if err := packs.PreDownload(ctx, cand); err != nil {
				return err
			}
			if cand.Archive == nil {
				fetches.Add(1)
				cand.Archive = []byte("season archive")
			}
			cand.Content = []byte("episode subtitle")
			return packs.PostDownload(ctx, cand)
		},
	}
	e, _, p := newEngine(t, source)
	packs = p

	videos := make([]*media.Video, 8)
	for i := range videos {
		videos[i] = &media.Video{ID: int64(i + 1), Path: string(rune('a' + i)), Title: "Heat", Year: 1995}
	}
	results, err := e.Resolve(context.Background(), videos, Policy{
		Languages:        []language.Language{eng},
		VideoConcurrency: 8,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != len(videos) {
		t.Fatalf("resolved %d of %d videos", len(results), len(videos))
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("archive fetched %d times, want exactly 1", got)
	}
}

func TestResolveOnlyOneStopsAfterFirstLanguage(t *testing.T) {
	hun := language.MustParse("hu")
	source := &fakeSource{
		order: []string{"first"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{
				{Provider: "first", ID: "en-sub", Language: eng, Matches: titleMatch()},
				{Provider: "first", ID: "hu-sub", Language: hun, Matches: titleMatch()},
			}
		},
	}
	e, _, _ := newEngine(t, source)
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng, hun},
		OnlyOne:   true,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results[1]) != 1 {
		t.Fatalf("only_one downloaded %d subtitles", len(results[1]))
	}
}

func TestResolveSkipsSatisfiedVideos(t *testing.T) {
	source := &fakeSource{order: []string{"first"}}
	e, _, _ := newEngine(t, source)
	video := movieVideo(1)
	video.SubtitleLanguages = []language.Language{eng}
	results, err := e.Resolve(context.Background(), []*media.Video{video}, Policy{
		Languages: []language.Language{eng},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("unexpected selections: %v", results)
	}
	if source.listCalls.Load() != 0 {
		t.Fatal("satisfied video still queried providers")
	}
}

func TestResolveMinScoreFiltersWeakCandidates(t *testing.T) {
	weak := media.NewMatches()
	weak.Add(media.MatchResolution)
	source := &fakeSource{
		order: []string{"first"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{{Provider: "first", ID: "weak", Language: eng, Matches: weak}}
		},
	}
	e, _, _ := newEngine(t, source)
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng},
		MinScore:  50,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("weak candidate selected: %v", results)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	writes []Selected
	err    error
}

func (r *recordingSink) Write(_ context.Context, _ *media.Video, s Selected) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, s)
	return nil
}

func TestResolveHandsSelectionsToSink(t *testing.T) {
	source := &fakeSource{
		order: []string{"first"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{{Provider: "first", ID: "a", Language: eng, Matches: titleMatch()}}
		},
	}
	sink := &recordingSink{}
	_, bl, packs := newEngine(t, source)
	e, err := New(Options{Source: source, Blacklist: bl, Packs: packs, Sink: sink, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results[1]) != 1 || len(sink.writes) != 1 {
		t.Fatalf("sink writes = %d, selections = %d", len(sink.writes), len(results[1]))
	}
}

func TestResolveSinkFailureDropsSelection(t *testing.T) {
	source := &fakeSource{
		order: []string{"first"},
		list: func(*media.Video) []*providers.Candidate {
			return []*providers.Candidate{{Provider: "first", ID: "a", Language: eng, Matches: titleMatch()}}
		},
	}
	sink := &recordingSink{err: errors.New("disk full")}
	_, bl, packs := newEngine(t, source)
	e, err := New(Options{Source: source, Blacklist: bl, Packs: packs, Sink: sink, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := e.Resolve(context.Background(), []*media.Video{movieVideo(1)}, Policy{
		Languages: []language.Language{eng},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("selection recorded despite sink failure: %v", results)
	}
}
