package media

import (
	"strings"

	"subscout/internal/language"
)

// HashOpenSubtitles is the hashing scheme name for the OpenSubtitles
// 64-bit file hash.
const HashOpenSubtitles = "opensubtitles"

// ScoreTable maps match attribute names to integer weights.
type ScoreTable map[string]int

// Video describes one media asset entering a resolution pass. It is built
// once from upstream scan metadata and is read-only to the resolver except
// for the known-subtitle inventory, which grows as subtitles are accepted.
type Video struct {
	ID           int64
	Path         string
	Title        string
	Year         int
	Series       string
	Season       int
	Episode      int
	ImdbID       string
	TvdbID       int64
	ReleaseGroup string
	Resolution   string
	Format       string
	VideoCodec   string
	AudioCodec   string
	FPS          float64
	Duration     float64

	// Hashes keyed by hashing scheme name (e.g. "opensubtitles").
	Hashes map[string]string

	AudioLanguages    []language.Language
	SubtitleLanguages []language.Language
	// MetadataLanguages holds subtitle languages recorded in attached
	// per-file metadata, consulted when filesystem discovery is disabled.
	MetadataLanguages []language.Language

	Scores ScoreTable
}

// IsEpisode reports whether the video is a series episode rather than a movie.
func (v *Video) IsEpisode() bool {
	return strings.TrimSpace(v.Series) != ""
}

// Hash returns the content hash for the named scheme, if known.
func (v *Video) Hash(scheme string) string {
	if v == nil || v.Hashes == nil {
		return ""
	}
	return v.Hashes[scheme]
}

// HasSubtitle reports whether the exact language is already in the inventory.
func (v *Video) HasSubtitle(lang language.Language) bool {
	return language.Contains(v.SubtitleLanguages, lang)
}

// AddSubtitleLanguage records an accepted subtitle language.
func (v *Video) AddSubtitleLanguage(lang language.Language) {
	if v.HasSubtitle(lang) {
		return
	}
	v.SubtitleLanguages = append(v.SubtitleLanguages, lang)
}

// ScoreTableFor returns the video's score table, falling back to the default
// table for its kind when the scan collaborator supplied none.
func (v *Video) ScoreTableFor() ScoreTable {
	if len(v.Scores) > 0 {
		return v.Scores
	}
	if v.IsEpisode() {
		return DefaultEpisodeScores()
	}
	return DefaultMovieScores()
}

// DefaultEpisodeScores returns the standard attribute weights for episodes.
// The hash weight deliberately exceeds the sum of every identity attribute
// it subsumes, so a corroborated hash match always wins.
func DefaultEpisodeScores() ScoreTable {
	return ScoreTable{
		MatchHash:            359,
		MatchSeries:          180,
		MatchIMDBID:          130,
		MatchTVDBID:          90,
		MatchYear:            90,
		MatchSeason:          30,
		MatchEpisode:         30,
		MatchTitle:           20,
		MatchReleaseGroup:    15,
		MatchFormat:          7,
		MatchAudioCodec:      3,
		MatchResolution:      2,
		MatchVideoCodec:      2,
		MatchHearingImpaired: 1,
	}
}

// DefaultMovieScores returns the standard attribute weights for movies.
func DefaultMovieScores() ScoreTable {
	return ScoreTable{
		MatchHash:            119,
		MatchTitle:           60,
		MatchIMDBID:          35,
		MatchYear:            30,
		MatchReleaseGroup:    15,
		MatchFormat:          7,
		MatchAudioCodec:      3,
		MatchResolution:      2,
		MatchVideoCodec:      2,
		MatchHearingImpaired: 1,
	}
}
