// Package podnapisi adapts the Podnapisi.NET advanced-search JSON API to the
// provider contract. Search is metadata-only (the API has no hash lookup) and
// downloads arrive as zip archives holding a single subtitle file.
package podnapisi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/providers"
)

const (
	name               = "podnapisi"
	defaultBaseURL     = "https://www.podnapisi.net"
	defaultUserAgent   = "subscout/dev"
	defaultHTTPTimeout = 45 * time.Second
)

func init() {
	providers.Register(name, New)
}

// Adapter talks to the Podnapisi.NET JSON API. No credentials are needed.
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

func (a *Adapter) Languages() []language.Language {
	return capability()
}

func (a *Adapter) Initialize(context.Context) error { return nil }

func (a *Adapter) Terminate() error { return nil }

// List runs one advanced search per forced/unforced group and converts the
// results into candidates.
func (a *Adapter) List(ctx context.Context, video *media.Video, langs []language.Language) ([]*providers.Candidate, error) {
	codes := make([]string, 0, len(langs))
	for _, l := range langs {
		if code, ok := searchCodes[l.Alpha3]; ok {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, providers.Wrap(providers.ErrNotFound, name, "list", "no supported languages requested", nil)
	}

	endpoint := a.baseURL.JoinPath("subtitles", "search", "advanced")
	params := url.Values{}
	for _, code := range codes {
		params.Add("language", code)
	}
	if video.IsEpisode() {
		params.Set("keywords", video.Series)
		if video.Season > 0 {
			params.Set("seasons", strconv.Itoa(video.Season))
		}
		if video.Episode > 0 {
			params.Set("episodes", strconv.Itoa(video.Episode))
		}
	} else {
		params.Set("keywords", video.Title)
		if video.Year > 0 {
			params.Set("year", strconv.Itoa(video.Year))
		}
		params.Set("movie_type", "movie")
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

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "list", "decode search response", err)
	}

	candidates := make([]*providers.Candidate, 0, len(payload.Data))
	for _, entry := range payload.Data {
		lang, err := language.Parse(entry.Language)
		if err != nil {
			continue
		}
		lang = lang.WithForced(hasFlag(entry.Flags, "foreign_only"))
		if !language.Contains(langs, lang) {
			continue
		}
		candidates = append(candidates, &providers.Candidate{
			Provider:        name,
			ID:              entry.ID,
			Language:        lang,
			Release:         firstRelease(entry.Releases),
			PageLink:        entry.URL,
			Matches:         a.deriveMatches(video, entry),
			HearingImpaired: hasFlag(entry.Flags, "hearing_impaired"),
		})
	}
	if len(candidates) == 0 {
		return nil, providers.Wrap(providers.ErrNotFound, name, "list", "no results", nil)
	}
	return candidates, nil
}

func (a *Adapter) deriveMatches(video *media.Video, entry searchEntry) media.Matches {
	m := providers.ReleaseMatches(video, strings.Join(entry.Releases, " "))
	movie := entry.Movie
	if video.IsEpisode() {
		if providers.TitleEqual(movie.Title, video.Series) {
			m.Add(media.MatchSeries)
		}
		if video.Season > 0 && movie.Season == video.Season {
			m.Add(media.MatchSeason)
		}
		if video.Episode > 0 && movie.Episode == video.Episode {
			m.Add(media.MatchEpisode)
		}
	} else if providers.TitleEqual(movie.Title, video.Title) {
		m.Add(media.MatchTitle)
	}
	if movie.Year > 0 && movie.Year == video.Year {
		m.Add(media.MatchYear)
	}
	if hasFlag(entry.Flags, "hearing_impaired") {
		m.Add(media.MatchHearingImpaired)
	}
	return m
}

// Download fetches the zip archive for the subtitle and extracts the first
// subtitle file inside it.
func (a *Adapter) Download(ctx context.Context, candidate *providers.Candidate) error {
	endpoint := a.baseURL.JoinPath("subtitles", candidate.ID, "download")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "build request", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return providers.ClassifyStatus(name, "download", resp.StatusCode, string(body))
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "read archive", err)
	}
	content, err := extractSubtitle(archive)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "extract archive", err)
	}
	candidate.Content = content
	return nil
}

var subtitleExtensions = map[string]bool{
	".srt": true,
	".ssa": true,
	".ass": true,
	".sub": true,
}

// extractSubtitle pulls the first subtitle file out of a zip archive.
func extractSubtitle(archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, err
	}
	for _, file := range reader.File {
		if !subtitleExtensions[strings.ToLower(path.Ext(file.Name))] {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, providers.Wrap(providers.ErrTransient, name, "download", "archive holds no subtitle file", nil)
}

func firstRelease(releases []string) string {
	if len(releases) == 0 {
		return ""
	}
	return releases[0]
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

type searchResponse struct {
	Data []searchEntry `json:"data"`
	All  int           `json:"all"`
}

type searchEntry struct {
	ID       string   `json:"id"`
	Language string   `json:"language"`
	URL      string   `json:"url"`
	Releases []string `json:"custom_releases"`
	Flags    []string `json:"flags"`
	Movie    struct {
		Title   string `json:"title"`
		Year    int    `json:"year"`
		Season  int    `json:"season"`
		Episode int    `json:"episode"`
	} `json:"movie"`
}
