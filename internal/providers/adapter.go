// Package providers defines the contract every subtitle source implements,
// the tagged failure taxonomy the pool branches on, and the name-to-factory
// registry adapters install themselves into.
package providers

import (
	"context"

	"subscout/internal/language"
	"subscout/internal/media"
)

// Candidate is a provider-offered subtitle that has not necessarily been
// downloaded yet. Content is populated lazily by Download.
type Candidate struct {
	Provider string
	ID       string
	Language language.Language
	Release  string
	PageLink string
	// Matches holds the video attributes this candidate is believed to
	// satisfy, prior to scoring.
	Matches         media.Matches
	HearingImpaired bool

	// IsPack marks a candidate that lives inside a multi-episode archive.
	// PackFingerprint identifies the archive itself, not the subtitle;
	// PackSeason/PackEpisode name the member to select from it.
	IsPack          bool
	PackFingerprint string
	PackSeason      int
	PackEpisode     int

	Content []byte
	// Archive carries raw pack archive bytes between the cache hooks and
	// the adapter: the pre-download hook may inject previously fetched
	// bytes, the adapter sets it after fetching, and the post-download hook
	// persists and clears it.
	Archive []byte
}

// Settings is the per-provider configuration snapshot handed to factories.
type Settings struct {
	APIKey            string
	Username          string
	Password          string
	UserAgent         string
	UserToken         string
	BaseURL           string
	RequestsPerMinute int
}

// Adapter is the contract every subtitle source implements. Adapter
// instances are not reentrant; the pool serializes calls per instance.
type Adapter interface {
	Name() string
	// Languages returns the provider's language capability set.
	Languages() []language.Language
	// Initialize performs any authentication or session setup. A returned
	// ErrConfiguration permanently discards the provider for this run.
	Initialize(ctx context.Context) error
	// List returns candidates for the requested languages. Errors are
	// classified through the package taxonomy.
	List(ctx context.Context, video *media.Video, langs []language.Language) ([]*Candidate, error)
	// Download populates candidate.Content (and, for packs, candidate.Archive
	// when the archive had to be fetched).
	Download(ctx context.Context, candidate *Candidate) error
	Terminate() error
}
