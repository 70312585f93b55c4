// Package scoring converts a candidate's matched-attribute set into a single
// comparable score. Redundant evidence is collapsed before summing so that a
// file-hash match does not also collect points for the attributes it already
// implies.
package scoring

import "subscout/internal/media"

// Score computes the weight sum for matches against the video's score table.
//
// Collapse rules, applied in priority order:
//
//  1. A hash match is trusted only when corroborated: for episodes the set
//     must also contain series, season and episode; for movies it must
//     contain title, format and video_codec. A valid hash reduces the set to
//     {hash, hearing_impaired}; an invalid hash is removed outright and the
//     remaining attributes fall through to rule 2.
//  2. For episodes without a (trusted) hash, a confirmed imdb_id subsumes
//     series, tvdb_id, season, episode, title and year; a confirmed tvdb_id
//     subsumes series and year.
//
// The sum is not capped: attribute weights already encode priority, and an
// unusually well-corroborated set may legitimately outrank a bare hash.
// Pure function: no I/O, identical inputs always score identically.
func Score(matches media.Matches, video *media.Video) int {
	table := video.ScoreTableFor()
	m := matches.Clone()

	if m.Has(media.MatchHash) {
		if hashCorroborated(m, video) {
			return sum(m.Intersect(media.MatchHash, media.MatchHearingImpaired), table)
		}
		m.Remove(media.MatchHash)
	}

	if video.IsEpisode() {
		if m.Has(media.MatchIMDBID) {
			m.Remove(media.MatchSeries, media.MatchTVDBID, media.MatchSeason,
				media.MatchEpisode, media.MatchTitle, media.MatchYear)
		}
		if m.Has(media.MatchTVDBID) {
			m.Remove(media.MatchSeries, media.MatchYear)
		}
	}

	return sum(m, table)
}

func hashCorroborated(m media.Matches, video *media.Video) bool {
	if video.IsEpisode() {
		return m.HasAll(media.MatchSeries, media.MatchSeason, media.MatchEpisode)
	}
	return m.HasAll(media.MatchTitle, media.MatchFormat, media.MatchVideoCodec)
}

func sum(m media.Matches, table media.ScoreTable) int {
	total := 0
	for attr := range m {
		total += table[attr]
	}
	return total
}
