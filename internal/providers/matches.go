package providers

import (
	"regexp"
	"strings"

	"subscout/internal/media"
)

var releaseTokenRe = regexp.MustCompile(`[^a-z0-9]+`)

// formatTokens maps release-source spellings onto the canonical format names
// the scan collaborator uses in Video.Format.
var formatTokens = map[string][]string{
	"bluray": {"bluray", "blu-ray", "bdrip", "brrip", "remux"},
	"web":    {"web", "webrip", "web-dl", "webdl"},
	"hdtv":   {"hdtv", "tvrip"},
	"dvd":    {"dvd", "dvdrip"},
}

// ReleaseMatches derives match attributes by comparing a candidate's release
// string with the video's known release metadata. Only attributes that can be
// independently confirmed from the release name are added; identity
// attributes (series, episode ids) are the adapter's responsibility.
func ReleaseMatches(video *media.Video, release string) media.Matches {
	m := media.NewMatches()
	release = strings.ToLower(strings.TrimSpace(release))
	if release == "" {
		return m
	}
	tokens := releaseTokenRe.ReplaceAllString(release, ".")

	if group := strings.ToLower(strings.TrimSpace(video.ReleaseGroup)); group != "" {
		if strings.Contains(tokens, releaseTokenRe.ReplaceAllString(group, ".")) {
			m.Add(media.MatchReleaseGroup)
		}
	}
	if res := strings.ToLower(strings.TrimSpace(video.Resolution)); res != "" {
		if strings.Contains(tokens, res) {
			m.Add(media.MatchResolution)
		}
	}
	if format := strings.ToLower(strings.TrimSpace(video.Format)); format != "" {
		for _, token := range formatTokens[format] {
			if strings.Contains(tokens, releaseTokenRe.ReplaceAllString(token, ".")) {
				m.Add(media.MatchFormat)
				break
			}
		}
	}
	if codec := strings.ToLower(strings.TrimSpace(video.VideoCodec)); codec != "" {
		spellings := []string{codec}
		switch codec {
		case "h264":
			spellings = append(spellings, "x264", "avc")
		case "h265":
			spellings = append(spellings, "x265", "hevc")
		}
		for _, spelling := range spellings {
			if strings.Contains(tokens, spelling) {
				m.Add(media.MatchVideoCodec)
				break
			}
		}
	}
	if audio := strings.ToLower(strings.TrimSpace(video.AudioCodec)); audio != "" {
		if strings.Contains(tokens, releaseTokenRe.ReplaceAllString(audio, ".")) {
			m.Add(media.MatchAudioCodec)
		}
	}
	return m
}

// TitleEqual compares two titles ignoring case and punctuation.
func TitleEqual(a, b string) bool {
	na := normalizeTitle(a)
	nb := normalizeTitle(b)
	return na != "" && na == nb
}

func normalizeTitle(title string) string {
	return releaseTokenRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "")
}
