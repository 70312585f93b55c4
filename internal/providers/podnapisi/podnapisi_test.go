package podnapisi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/providers"
)

func newAdapter(t *testing.T, baseURL string) providers.Adapter {
	t.Helper()
	adapter, err := New(providers.Settings{BaseURL: baseURL, UserAgent: "subscout/test"}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return adapter
}

func TestListParsesSearchResults(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"id":              "AbCd",
					"language":        "sl",
					"url":             "/subtitles/AbCd",
					"custom_releases": []string{"Heat.1995.1080p.BluRay.x264-GROUP"},
					"flags":           []string{"hearing_impaired"},
					"movie": map[string]any{
						"title": "Heat",
						"year":  1995,
					},
				},
			},
			"all": 1,
		})
	}))
	defer server.Close()

	video := &media.Video{
		ID:           3,
		Title:        "Heat",
		Year:         1995,
		ReleaseGroup: "GROUP",
		Resolution:   "1080p",
		Format:       "bluray",
		VideoCodec:   "h264",
	}
	adapter := newAdapter(t, server.URL)
	candidates, err := adapter.List(context.Background(), video, []language.Language{language.MustParse("sl")})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates", len(candidates))
	}

	query := captured.URL.Query()
	if query.Get("keywords") != "Heat" || query.Get("year") != "1995" {
		t.Fatalf("movie query wrong: %v", query)
	}
	if query.Get("language") != "sl" {
		t.Fatalf("language param = %q", query.Get("language"))
	}

	cand := candidates[0]
	if cand.ID != "AbCd" || cand.Language.Alpha3 != "slv" {
		t.Fatalf("candidate = %q lang=%v", cand.ID, cand.Language)
	}
	if !cand.HearingImpaired || !cand.Matches.Has(media.MatchHearingImpaired) {
		t.Fatal("hearing impaired flag lost")
	}
	for _, attr := range []string{media.MatchTitle, media.MatchYear, media.MatchReleaseGroup, media.MatchFormat} {
		if !cand.Matches.Has(attr) {
			t.Fatalf("match %q not derived; got %v", attr, cand.Matches.Sorted())
		}
	}
}

func TestListEpisodeQueryUsesSeries(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}, "all": 0})
	}))
	defer server.Close()

	video := &media.Video{Series: "Breaking Bad", Season: 2, Episode: 5}
	adapter := newAdapter(t, server.URL)
	_, err := adapter.List(context.Background(), video, []language.Language{language.MustParse("en")})
	if !errors.Is(err, providers.ErrNotFound) {
		t.Fatalf("empty search = %v, want ErrNotFound", err)
	}
	query := captured.URL.Query()
	if query.Get("keywords") != "Breaking Bad" || query.Get("seasons") != "2" || query.Get("episodes") != "5" {
		t.Fatalf("episode query wrong: %v", query)
	}
}

func TestDownloadExtractsZipPayload(t *testing.T) {
	const subtitle = "1\n00:00:01,000 --> 00:00:02,000\nzdravo\n"
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	if f, err := zw.Create("readme.txt"); err == nil {
		_, _ = f.Write([]byte("not a subtitle"))
	}
	if f, err := zw.Create("Heat.1995.sl.srt"); err == nil {
		_, _ = f.Write([]byte(subtitle))
	}
	_ = zw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subtitles/AbCd/download" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(archive.Bytes())
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	cand := &providers.Candidate{Provider: "podnapisi", ID: "AbCd"}
	if err := adapter.Download(context.Background(), cand); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(cand.Content) != subtitle {
		t.Fatalf("content = %q", cand.Content)
	}
}

func TestDownloadRejectsArchiveWithoutSubtitle(t *testing.T) {
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	if f, err := zw.Create("notes.txt"); err == nil {
		_, _ = f.Write([]byte("empty"))
	}
	_ = zw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive.Bytes())
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	cand := &providers.Candidate{Provider: "podnapisi", ID: "AbCd"}
	if err := adapter.Download(context.Background(), cand); !errors.Is(err, providers.ErrTransient) {
		t.Fatalf("Download = %v, want ErrTransient", err)
	}
}
