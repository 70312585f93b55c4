// Package supersubtitles adapts the feliratok.eu JSON API to the provider
// contract. The site serves Hungarian and English subtitles and frequently
// publishes whole-season packs: one zip archive covering every episode. Pack
// candidates carry an archive fingerprint so the pack cache can guarantee a
// single fetch per archive no matter how many episodes draw from it.
package supersubtitles

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/providers"
)

const (
	name               = "supersubtitles"
	defaultBaseURL     = "https://www.feliratok.eu"
	defaultUserAgent   = "subscout/dev"
	defaultHTTPTimeout = 45 * time.Second
)

func init() {
	providers.Register(name, New)
}

// Adapter talks to the feliratok.eu JSON endpoint. No credentials are needed.
type Adapter struct {
	userAgent string
	baseURL   *url.URL
	http      *http.Client
	logger    *slog.Logger
}

// New constructs the adapter from its settings.
func New(settings providers.Settings, logger *slog.Logger) (providers.Adapter, error) {
	base := strings.TrimSpace(settings.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, providers.Wrap(providers.ErrConfiguration, name, "construct", "parse base url", err)
	}
	userAgent := strings.TrimSpace(settings.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Adapter{
		userAgent: userAgent,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: defaultHTTPTimeout},
		logger:    logging.NewComponentLogger(logger, name),
	}, nil
}

func (a *Adapter) Name() string { return name }

// Languages: the site carries Hungarian and English only.
func (a *Adapter) Languages() []language.Language {
	hun := language.Language{Alpha3: "hun"}
	eng := language.Language{Alpha3: "eng"}
	return []language.Language{hun, hun.WithForced(true), eng, eng.WithForced(true)}
}

func (a *Adapter) Initialize(context.Context) error { return nil }

func (a *Adapter) Terminate() error { return nil }

// List only serves episodes: the site is a TV subtitle catalogue.
func (a *Adapter) List(ctx context.Context, video *media.Video, langs []language.Language) ([]*providers.Candidate, error) {
	if !video.IsEpisode() {
		return nil, providers.Wrap(providers.ErrNotFound, name, "list", "movies are not served", nil)
	}

	endpoint := a.baseURL.JoinPath("index.php")
	params := url.Values{}
	params.Set("action", "xbmc")
	params.Set("fnev", video.Series)
	if video.Season > 0 {
		params.Set("evad", strconv.Itoa(video.Season))
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "list", "build request", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "list", "search request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, providers.ClassifyStatus(name, "list", resp.StatusCode, string(body))
	}

	// The endpoint returns a JSON object keyed by row number.
	var payload map[string]searchEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "list", "decode search response", err)
	}

	var candidates []*providers.Candidate
	for _, entry := range payload {
		lang, ok := siteLanguages[entry.Language]
		if !ok || !language.Contains(langs, lang) {
			continue
		}
		season := entry.Season.Int()
		episode := entry.Episode.Int()
		if season > 0 && video.Season > 0 && season != video.Season {
			continue
		}
		isPack := entry.SeasonPack == "1" || episode <= 0
		if !isPack && video.Episode > 0 && episode != video.Episode {
			continue
		}
		cand := &providers.Candidate{
			Provider: name,
			ID:       entry.SubtitleID,
			Language: lang,
			Release:  entry.Release,
			PageLink: a.baseURL.JoinPath("index.php").String() + "?action=letolt&felirat=" + url.QueryEscape(entry.SubtitleID),
			Matches:  a.deriveMatches(video, entry, isPack),
			IsPack:   isPack,
		}
		if isPack {
			cand.PackFingerprint = fmt.Sprintf("%s:%s", name, entry.SubtitleID)
			cand.PackSeason = video.Season
			cand.PackEpisode = video.Episode
		}
		candidates = append(candidates, cand)
	}
	if len(candidates) == 0 {
		return nil, providers.Wrap(providers.ErrNotFound, name, "list", "no results", nil)
	}
	return candidates, nil
}

func (a *Adapter) deriveMatches(video *media.Video, entry searchEntry, isPack bool) media.Matches {
	m := providers.ReleaseMatches(video, entry.Release)
	if providers.TitleEqual(entry.Show, video.Series) {
		m.Add(media.MatchSeries)
	}
	if season := entry.Season.Int(); season > 0 && season == video.Season {
		m.Add(media.MatchSeason)
	}
	// A pack row covers the whole season, so the episode attribute is only
	// claimed once the right file is pulled from the archive; an exact row
	// claims it up front.
	if !isPack {
		if episode := entry.Episode.Int(); episode > 0 && episode == video.Episode {
			m.Add(media.MatchEpisode)
		}
	} else if video.Episode > 0 {
		m.Add(media.MatchEpisode)
	}
	return m
}

// Download resolves the candidate's content. For plain candidates the payload
// is fetched and, when zipped, unwrapped. For pack candidates the archive is
// taken from the cache-injected bytes when present, fetched otherwise, and
// the episode's file is selected from it; the fetched archive is left on the
// candidate for the post-download hook to persist.
func (a *Adapter) Download(ctx context.Context, candidate *providers.Candidate) error {
	if !candidate.IsPack {
		data, err := a.fetch(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if looksLikeZip(data) {
			content, err := firstSubtitle(data)
			if err != nil {
				return err
			}
			candidate.Content = content
			return nil
		}
		candidate.Content = data
		return nil
	}

	archive := candidate.Archive
	if archive == nil {
		fetched, err := a.fetch(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if !looksLikeZip(fetched) {
			return providers.Wrap(providers.ErrTransient, name, "download", "pack payload is not a zip archive", nil)
		}
		archive = fetched
		candidate.Archive = fetched
	}

	content, err := selectEpisode(archive, candidate.PackSeason, candidate.PackEpisode)
	if err != nil {
		return err
	}
	candidate.Content = content
	return nil
}

func (a *Adapter) fetch(ctx context.Context, subtitleID string) ([]byte, error) {
	endpoint := a.baseURL.JoinPath("index.php")
	params := url.Values{}
	params.Set("action", "letolt")
	params.Set("felirat", subtitleID)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "download", "build request", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "download", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, providers.ClassifyStatus(name, "download", resp.StatusCode, string(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "download", "read payload", err)
	}
	if len(data) == 0 {
		return nil, providers.Wrap(providers.ErrTransient, name, "download", "empty payload", nil)
	}
	return data, nil
}

var subtitleExtensions = map[string]bool{
	".srt": true,
	".ssa": true,
	".ass": true,
	".sub": true,
}

var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)s(\d{1,2})[ ._-]?e(\d{1,3})`),
	regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`),
}

// selectEpisode picks the archive member matching the season/episode pair.
// An archive that holds subtitles but none for the requested episode is an
// archive selection failure, which the engine treats as a blacklistable
// candidate defect rather than a transient fault.
func selectEpisode(archive []byte, season, episode int) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "download", "open pack archive", err)
	}
	for _, file := range reader.File {
		if !subtitleExtensions[strings.ToLower(path.Ext(file.Name))] {
			continue
		}
		s, e, ok := parseEpisodeName(file.Name)
		if !ok || s != season || e != episode {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, providers.Wrap(providers.ErrTransient, name, "download", "open archive member", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, providers.Wrap(providers.ErrTransient, name, "download", "read archive member", err)
		}
		return data, nil
	}
	return nil, providers.Wrap(providers.ErrArchiveSelection, name, "download",
		fmt.Sprintf("no file for S%02dE%02d in pack", season, episode), nil)
}

func parseEpisodeName(filename string) (season, episode int, ok bool) {
	for _, pattern := range episodePatterns {
		if m := pattern.FindStringSubmatch(filename); m != nil {
			season, _ = strconv.Atoi(m[1])
			episode, _ = strconv.Atoi(m[2])
			return season, episode, true
		}
	}
	return 0, 0, false
}

func firstSubtitle(archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "download", "open archive", err)
	}
	for _, file := range reader.File {
		if !subtitleExtensions[strings.ToLower(path.Ext(file.Name))] {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, providers.Wrap(providers.ErrTransient, name, "download", "open archive member", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, providers.Wrap(providers.ErrTransient, name, "download", "read archive member", err)
		}
		return data, nil
	}
	return nil, providers.Wrap(providers.ErrTransient, name, "download", "archive holds no subtitle file", nil)
}

func looksLikeZip(data []byte) bool {
	return len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

// siteLanguages maps the site's Hungarian language labels onto languages.
var siteLanguages = map[string]language.Language{
	"Magyar": {Alpha3: "hun"},
	"Angol":  {Alpha3: "eng"},
}

// flexInt tolerates the API's habit of returning numbers as strings.
type flexInt string

func (f flexInt) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil {
		return 0
	}
	return n
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*f = flexInt(s)
	return nil
}

type searchEntry struct {
	SubtitleID string  `json:"felirat"`
	Show       string  `json:"fnev"`
	Language   string  `json:"language"`
	Release    string  `json:"baseid"`
	Season     flexInt `json:"evad"`
	Episode    flexInt `json:"ep"`
	SeasonPack string  `json:"evadpakk"`
}
