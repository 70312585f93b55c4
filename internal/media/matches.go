package media

import "sort"

// Attribute names a candidate may claim to match against a video. The score
// table on each video is expected to define a weight for every attribute
// that can appear in a match set.
const (
	MatchHash            = "hash"
	MatchTitle           = "title"
	MatchSeries          = "series"
	MatchSeason          = "season"
	MatchEpisode         = "episode"
	MatchYear            = "year"
	MatchReleaseGroup    = "release_group"
	MatchResolution      = "resolution"
	MatchFormat          = "format"
	MatchVideoCodec      = "video_codec"
	MatchAudioCodec      = "audio_codec"
	MatchTVDBID          = "tvdb_id"
	MatchIMDBID          = "imdb_id"
	MatchHearingImpaired = "hearing_impaired"
)

// Matches is the set of attributes a candidate is believed to satisfy.
type Matches map[string]struct{}

// NewMatches builds a set from the given attribute names.
func NewMatches(attrs ...string) Matches {
	m := make(Matches, len(attrs))
	for _, attr := range attrs {
		m[attr] = struct{}{}
	}
	return m
}

func (m Matches) Has(attr string) bool {
	_, ok := m[attr]
	return ok
}

// HasAll reports whether every named attribute is present.
func (m Matches) HasAll(attrs ...string) bool {
	for _, attr := range attrs {
		if !m.Has(attr) {
			return false
		}
	}
	return true
}

func (m Matches) Add(attrs ...string) {
	for _, attr := range attrs {
		m[attr] = struct{}{}
	}
}

func (m Matches) Remove(attrs ...string) {
	for _, attr := range attrs {
		delete(m, attr)
	}
}

// Clone returns an independent copy.
func (m Matches) Clone() Matches {
	out := make(Matches, len(m))
	for attr := range m {
		out[attr] = struct{}{}
	}
	return out
}

// Intersect returns the members of m that are also in the keep list.
func (m Matches) Intersect(keep ...string) Matches {
	out := make(Matches, len(keep))
	for _, attr := range keep {
		if m.Has(attr) {
			out[attr] = struct{}{}
		}
	}
	return out
}

// Sorted returns the attribute names in stable order for logging.
func (m Matches) Sorted() []string {
	out := make([]string, 0, len(m))
	for attr := range m {
		out = append(out, attr)
	}
	sort.Strings(out)
	return out
}
