// Package opensubtitles adapts the OpenSubtitles REST API to the provider
// contract. Searches prefer the video's moviehash when one is known and fall
// back to imdb id and free-text queries; downloads follow the API's two-step
// negotiation (request a link, then fetch it).
package opensubtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/providers"
)

const (
	name               = "opensubtitles"
	defaultBaseURL     = "https://api.opensubtitles.com/api/v1"
	defaultUserAgent   = "subscout/dev"
	defaultHTTPTimeout = 45 * time.Second
)

func init() {
	providers.Register(name, New)
}

// Adapter talks to the OpenSubtitles REST API.
type Adapter struct {
	apiKey    string
	userAgent string
	userToken string
	baseURL   *url.URL
	http      *http.Client
	logger    *slog.Logger
}

// New constructs the adapter from its settings. Credential validation is
// deferred to Initialize so a misconfigured provider discards itself instead
// of failing pool construction.
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
		apiKey:    strings.TrimSpace(settings.APIKey),
		userAgent: userAgent,
		userToken: strings.TrimSpace(settings.UserToken),
		baseURL:   baseURL,
		http:      &http.Client{Timeout: defaultHTTPTimeout},
		logger:    logging.NewComponentLogger(logger, name),
	}, nil
}

func (a *Adapter) Name() string { return name }

// Languages returns the provider capability set, including forced variants:
// OpenSubtitles exposes foreign-parts-only tracks behind a search flag.
func (a *Adapter) Languages() []language.Language {
	return capability()
}

// Initialize only validates credentials; the API needs no session setup for
// anonymous-quota usage.
func (a *Adapter) Initialize(context.Context) error {
	if a.apiKey == "" {
		return providers.Wrap(providers.ErrConfiguration, name, "initialize", "api key is required", nil)
	}
	return nil
}

func (a *Adapter) Terminate() error { return nil }

// List searches once per requested language group (forced and unforced need
// distinct queries) and converts every usable result into a candidate.
func (a *Adapter) List(ctx context.Context, video *media.Video, langs []language.Language) ([]*providers.Candidate, error) {
	var candidates []*providers.Candidate
	for _, forced := range []bool{false, true} {
		group := filterForced(langs, forced)
		if len(group) == 0 {
			continue
		}
		found, err := a.search(ctx, video, group, forced)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}
	if len(candidates) == 0 {
		return nil, providers.Wrap(providers.ErrNotFound, name, "list", "no results", nil)
	}
	return candidates, nil
}

func (a *Adapter) search(ctx context.Context, video *media.Video, langs []language.Language, forced bool) ([]*providers.Candidate, error) {
	endpoint := a.baseURL.JoinPath("subtitles")
	params := url.Values{}
	params.Set("languages", strings.Join(queryCodes(langs), ","))

	hash := strings.TrimSpace(video.Hashes[media.HashOpenSubtitles])
	if hash != "" {
		params.Set("moviehash", hash)
	}
	if imdb := sanitizeIMDBID(video.ImdbID); imdb != "" {
		params.Set("imdb_id", imdb)
	}
	if video.IsEpisode() {
		params.Set("type", "episode")
		params.Set("query", video.Series)
		if video.Season > 0 {
			params.Set("season_number", strconv.Itoa(video.Season))
		}
		if video.Episode > 0 {
			params.Set("episode_number", strconv.Itoa(video.Episode))
		}
	} else {
		params.Set("type", "movie")
		params.Set("query", video.Title)
		if video.Year > 0 {
			params.Set("year", strconv.Itoa(video.Year))
		}
	}
	if forced {
		params.Set("foreign_parts_only", "only")
	} else {
		params.Set("foreign_parts_only", "exclude")
	}
	params.Set("order_by", "download_count")
	params.Set("order_direction", "desc")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "list", "build request", err)
	}
	a.applyHeaders(req)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "list", "search request failed", err)
	}
	defer resp.Body.Close()
	if err := classify(resp, "list"); err != nil {
		return nil, err
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, providers.Wrap(providers.ErrTransient, name, "list", "decode search response", err)
	}

	candidates := make([]*providers.Candidate, 0, len(payload.Data))
	for _, entry := range payload.Data {
		attrs := entry.Attributes
		fileID := attrs.PrimaryFileID()
		if fileID == 0 || attrs.Language == "" {
			continue
		}
		if attrs.AITranslated || attrs.MachineTranslated {
			continue
		}
		lang, err := language.Parse(attrs.Language)
		if err != nil {
			a.logger.Debug("skipping subtitle with unparseable language",
				logging.String(logging.FieldLanguage, attrs.Language),
			)
			continue
		}
		lang = lang.WithForced(attrs.ForeignPartsOnly)
		if !language.Contains(langs, lang) {
			continue
		}
		candidates = append(candidates, &providers.Candidate{
			Provider:        name,
			ID:              strconv.FormatInt(fileID, 10),
			Language:        lang,
			Release:         attrs.Release,
			PageLink:        attrs.URL,
			Matches:         a.deriveMatches(video, attrs, hash),
			HearingImpaired: attrs.HearingImpaired,
		})
	}
	return candidates, nil
}

// deriveMatches converts the response metadata into scoring attributes. The
// hash attribute is only claimed when the API itself confirmed a moviehash
// match for this result.
func (a *Adapter) deriveMatches(video *media.Video, attrs searchAttributes, queriedHash string) media.Matches {
	m := providers.ReleaseMatches(video, attrs.Release)
	if queriedHash != "" && attrs.MovieHashMatch {
		m.Add(media.MatchHash)
	}
	feature := attrs.FeatureDetails
	if video.IsEpisode() {
		if providers.TitleEqual(feature.ParentTitle, video.Series) {
			m.Add(media.MatchSeries)
		}
		if feature.SeasonNumber == video.Season && video.Season > 0 {
			m.Add(media.MatchSeason)
		}
		if feature.EpisodeNumber == video.Episode && video.Episode > 0 {
			m.Add(media.MatchEpisode)
		}
		if providers.TitleEqual(feature.Title, video.Title) {
			m.Add(media.MatchTitle)
		}
	} else if providers.TitleEqual(feature.Title, video.Title) {
		m.Add(media.MatchTitle)
	}
	if feature.Year > 0 && feature.Year == video.Year {
		m.Add(media.MatchYear)
	}
	if imdb := sanitizeIMDBID(video.ImdbID); imdb != "" && strconv.FormatInt(feature.IMDBID, 10) == imdb {
		m.Add(media.MatchIMDBID)
	}
	if video.TvdbID > 0 && feature.TVDBID == video.TvdbID {
		m.Add(media.MatchTVDBID)
	}
	if attrs.HearingImpaired {
		m.Add(media.MatchHearingImpaired)
	}
	return m
}

// Download negotiates a link for the file id and fetches the payload.
func (a *Adapter) Download(ctx context.Context, candidate *providers.Candidate) error {
	fileID, err := strconv.ParseInt(candidate.ID, 10, 64)
	if err != nil || fileID <= 0 {
		return providers.Wrap(providers.ErrTransient, name, "download", fmt.Sprintf("invalid file id %q", candidate.ID), err)
	}

	payload, err := json.Marshal(map[string]any{
		"file_id":    fileID,
		"sub_format": "srt",
	})
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "encode request", err)
	}

	endpoint := a.baseURL.JoinPath("download")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(string(payload)))
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.applyHeaders(req)

	resp, err := a.http.Do(req)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "negotiation failed", err)
	}
	defer resp.Body.Close()
	if err := classify(resp, "download"); err != nil {
		return err
	}

	var info downloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "decode negotiation response", err)
	}
	if info.Link == "" {
		return providers.Wrap(providers.ErrTransient, name, "download", "response missing link", nil)
	}
	linkURL, err := endpoint.Parse(info.Link)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "parse link", err)
	}

	dataReq, err := http.NewRequestWithContext(ctx, http.MethodGet, linkURL.String(), nil)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "build link request", err)
	}
	dataReq.Header.Set("User-Agent", a.userAgent)
	dataResp, err := a.http.Do(dataReq)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "fetch payload", err)
	}
	defer dataResp.Body.Close()
	if err := classify(dataResp, "download"); err != nil {
		return err
	}

	data, err := io.ReadAll(dataResp.Body)
	if err != nil {
		return providers.Wrap(providers.ErrTransient, name, "download", "read payload", err)
	}
	if len(data) == 0 {
		return providers.Wrap(providers.ErrTransient, name, "download", "empty payload", nil)
	}
	candidate.Content = data
	return nil
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Api-Key", a.apiKey)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")
	if a.userToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.userToken)
	}
}

func classify(resp *http.Response, operation string) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return providers.ClassifyStatus(name, operation, resp.StatusCode, string(body))
}

func filterForced(langs []language.Language, forced bool) []language.Language {
	out := make([]language.Language, 0, len(langs))
	for _, l := range langs {
		if l.Forced == forced {
			out = append(out, l)
		}
	}
	return out
}

// queryCodes renders languages in the API's dialect: lowercase IETF-ish codes
// such as "en" and "pt-br".
func queryCodes(langs []language.Language) []string {
	seen := make(map[string]struct{}, len(langs))
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		code, ok := apiCodes[l.Alpha3]
		if !ok {
			continue
		}
		if l.Country != "" {
			code = code + "-" + strings.ToLower(l.Country)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func sanitizeIMDBID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.TrimPrefix(value, "tt")
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return ""
	}
	return strings.TrimLeft(value, "0")
}

type searchResponse struct {
	Data []struct {
		ID         string           `json:"id"`
		Attributes searchAttributes `json:"attributes"`
	} `json:"data"`
	Meta struct {
		Total int `json:"total_count"`
	} `json:"meta"`
}

type searchAttributes struct {
	Language          string         `json:"language"`
	Release           string         `json:"release"`
	URL               string         `json:"url"`
	DownloadCount     int            `json:"download_count"`
	HearingImpaired   bool           `json:"hearing_impaired"`
	ForeignPartsOnly  bool           `json:"foreign_parts_only"`
	MovieHashMatch    bool           `json:"moviehash_match"`
	AITranslated      bool           `json:"ai_translated"`
	MachineTranslated bool           `json:"machine_translated"`
	FeatureDetails    featureDetails `json:"feature_details"`
	Files             []searchFile   `json:"files"`
}

func (a searchAttributes) PrimaryFileID() int64 {
	if len(a.Files) == 0 {
		return 0
	}
	return a.Files[0].FileID
}

type featureDetails struct {
	FeatureType   string `json:"feature_type"`
	Title         string `json:"title"`
	ParentTitle   string `json:"parent_title"`
	Year          int    `json:"year"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	IMDBID        int64  `json:"imdb_id"`
	TVDBID        int64  `json:"tvdb_id"`
}

type searchFile struct {
	FileID int64 `json:"file_id"`
}

type downloadResponse struct {
	Link     string `json:"link"`
	FileName string `json:"file_name"`
}
