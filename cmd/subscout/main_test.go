package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subscout/internal/config"
	"subscout/internal/engine"
	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[engine]") {
		t.Fatalf("sample config missing engine section: %q", data)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	cmd := newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("overwrite not refused: %v", err)
	}
}

func TestBuildPolicyFlagsOverrideConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithProviders("podnapisi"),
		testsupport.WithLanguages("hu", "en:forced"),
	)

	policy, err := buildPolicy(cfg, nil, false)
	if err != nil {
		t.Fatalf("buildPolicy: %v", err)
	}
	if len(policy.Languages) != 2 || !policy.Languages[0].Equal(language.MustParse("hu")) {
		t.Fatalf("configured languages = %v", policy.Languages)
	}

	policy, err = buildPolicy(cfg, []string{"pt-BR"}, true)
	if err != nil {
		t.Fatalf("buildPolicy with flags: %v", err)
	}
	if len(policy.Languages) != 1 || !policy.Languages[0].Equal(language.MustParse("pt-BR")) {
		t.Fatalf("--languages did not override config: %v", policy.Languages)
	}
	if !policy.OnlyOne {
		t.Fatal("--only-one not honored")
	}
}

func TestProviderSettingsCarriesCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProviderSettings("opensubtitles", config.Provider{
		APIKey:            "abc123",
		UserAgent:         "subscout/test",
		RequestsPerMinute: 12,
	}))

	settings := providerSettings(cfg)
	got, ok := settings["opensubtitles"]
	if !ok {
		t.Fatal("opensubtitles settings missing")
	}
	if got.APIKey != "abc123" || got.UserAgent != "subscout/test" || got.RequestsPerMinute != 12 {
		t.Fatalf("settings = %+v", got)
	}
}

func TestLoadManifestParsesDescriptors(t *testing.T) {
	path := testsupport.WriteManifest(t, []map[string]any{
		{
			"id":              12,
			"path":            "/library/tv/The.Wire.S02E05.mkv",
			"series":          "The Wire",
			"season":          2,
			"episode":         5,
			"hashes":          map[string]string{"opensubtitles": "8e245d9679d31e12"},
			"audio_languages": []string{"en"},
		},
	})
	videos, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if len(videos) != 1 || !videos[0].IsEpisode() {
		t.Fatalf("parsed %d videos, episode=%v", len(videos), len(videos) == 1 && videos[0].IsEpisode())
	}
}

func TestFileSinkTargetPath(t *testing.T) {
	sink := newFileSink("", logging.NewNop())
	video := &media.Video{ID: 1, Path: "/media/tv/Breaking.Bad.S02E05.mkv"}

	got := sink.targetPath(video, language.MustParse("en"))
	if got != "/media/tv/Breaking.Bad.S02E05.eng.srt" {
		t.Fatalf("targetPath = %q", got)
	}

	got = sink.targetPath(video, language.MustParse("pt-BR:forced"))
	if got != "/media/tv/Breaking.Bad.S02E05.por-BR.forced.srt" {
		t.Fatalf("forced targetPath = %q", got)
	}

	redirected := newFileSink("/srv/subs", logging.NewNop())
	got = redirected.targetPath(video, language.MustParse("hu"))
	if got != "/srv/subs/Breaking.Bad.S02E05.hun.srt" {
		t.Fatalf("output-dir targetPath = %q", got)
	}
}

func TestFileSinkWrite(t *testing.T) {
	dir := t.TempDir()
	sink := newFileSink(dir, logging.NewNop())
	video := &media.Video{ID: 4, Path: "/media/movies/Heat.1995.mkv"}
	sel := engine.Selected{
		Language: language.MustParse("en"),
		Provider: "opensubtitles",
		Content:  []byte("1\n00:00:01,000 --> 00:00:02,000\nhi\n"),
	}
	if err := sink.Write(context.Background(), video, sel); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Heat.1995.eng.srt"))
	if err != nil {
		t.Fatalf("read written subtitle: %v", err)
	}
	if !bytes.Equal(data, sel.Content) {
		t.Fatalf("content = %q", data)
	}
}
