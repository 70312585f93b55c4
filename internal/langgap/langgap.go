// Package langgap decides which requested subtitle languages a video still
// needs, given what already exists in its inventory.
package langgap

import (
	"subscout/internal/language"
	"subscout/internal/media"
)

// Policy carries the flags that change how the gap is computed.
type Policy struct {
	// OnlyOne treats the request as satisfied once the video has any known
	// subtitle language at all.
	OnlyOne bool
	// IETFAsAlpha3 compares languages with the country component stripped.
	IETFAsAlpha3 bool
	// AudioMatchSatisfies skips the search entirely when the video's audio
	// tracks already cover every requested language.
	AudioMatchSatisfies bool
	// IncludeMetadataLanguages unions subtitle languages recorded in
	// attached per-file metadata into the inventory. Used by deployments
	// where filesystem-based subtitle discovery is disabled.
	IncludeMetadataLanguages bool
}

// Missing returns the requested languages not yet covered by the video's
// inventory, or satisfied=true when no search is needed. It is a pure query:
// calling it twice with unchanged video state yields the same result.
//
// When IETFAsAlpha3 collapses two requested languages with different
// countries onto the same stripped form, the country restored on the missing
// entry is the one from the later element of the requested slice
// (last-writer-wins; the requested order is the caller's priority order).
func Missing(video *media.Video, requested []language.Language, policy Policy) (missing []language.Language, satisfied bool) {
	requested = language.Dedupe(requested)
	if len(requested) == 0 {
		return nil, true
	}

	if policy.AudioMatchSatisfies && covers(video.AudioLanguages, requested, policy.IETFAsAlpha3) {
		return nil, true
	}

	have := append([]language.Language(nil), video.SubtitleLanguages...)
	if policy.IncludeMetadataLanguages {
		have = append(have, video.MetadataLanguages...)
	}

	if policy.OnlyOne && len(have) > 0 {
		return nil, true
	}

	// Stripped comparison, remembering the original country per stripped
	// form so it can be restored on the returned set.
	countries := make(map[language.Language]string)
	wanted := make([]language.Language, 0, len(requested))
	for _, req := range requested {
		key := req
		if policy.IETFAsAlpha3 {
			key = req.StripCountry()
		}
		countries[key] = req.Country
		if !language.Contains(wanted, key) {
			wanted = append(wanted, key)
		}
	}

	haveSet := make(map[language.Language]struct{}, len(have))
	for _, l := range have {
		if policy.IETFAsAlpha3 {
			l = l.StripCountry()
		}
		haveSet[l] = struct{}{}
	}

	for _, w := range wanted {
		if _, ok := haveSet[w]; ok {
			continue
		}
		missing = append(missing, w.WithCountry(countries[w]))
	}
	return missing, len(missing) == 0
}

func covers(have, requested []language.Language, stripCountry bool) bool {
	set := make(map[language.Language]struct{}, len(have))
	for _, l := range have {
		// Audio tracks are never forced subtitles; ignore the flag so an
		// "eng" audio track satisfies a plain "eng" subtitle request.
		l = l.WithForced(false)
		if stripCountry {
			l = l.StripCountry()
		}
		set[l] = struct{}{}
	}
	for _, req := range requested {
		key := req.WithForced(false)
		if stripCountry {
			key = key.StripCountry()
		}
		if _, ok := set[key]; !ok {
			return false
		}
	}
	return true
}
