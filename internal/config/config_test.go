package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing file reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved = %q", resolved)
	}
	if len(cfg.Engine.Providers) == 0 || cfg.Engine.Providers[0] != "opensubtitles" {
		t.Fatalf("default providers = %v", cfg.Engine.Providers)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("default logging = %+v", cfg.Logging)
	}
}

func TestLoadOverridesAndExpandsPaths(t *testing.T) {
	path := writeConfig(t, `
[paths]
data_dir = "~/subscout-data"

[logging]
level = "DEBUG"

[engine]
providers = ["podnapisi"]
languages = ["pt-BR", "en:forced"]
only_one = true
min_score = 50

[providers.podnapisi]
requests_per_minute = 10
`)
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("file not detected")
	}
	home, _ := os.UserHomeDir()
	if cfg.Paths.DataDir != filepath.Join(home, "subscout-data") {
		t.Fatalf("data_dir not expanded: %q", cfg.Paths.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level not normalized: %q", cfg.Logging.Level)
	}
	if !cfg.Engine.OnlyOne || cfg.Engine.MinScore != 50 {
		t.Fatalf("engine overrides lost: %+v", cfg.Engine)
	}
	langs, err := cfg.RequestedLanguages()
	if err != nil {
		t.Fatalf("RequestedLanguages: %v", err)
	}
	if len(langs) != 2 || langs[0].Country != "BR" || !langs[1].Forced {
		t.Fatalf("languages = %v", langs)
	}
	if cfg.Providers["podnapisi"].RequestsPerMinute != 10 {
		t.Fatalf("provider override lost: %+v", cfg.Providers["podnapisi"])
	}
}

func TestLoadRejectsInvalidLanguage(t *testing.T) {
	path := writeConfig(t, `
[engine]
providers = ["opensubtitles"]
languages = ["not a language"]
`)
	if _, _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "engine.languages") {
		t.Fatalf("Load = %v, want engine.languages error", err)
	}
}

func TestLoadRejectsDuplicateProvider(t *testing.T) {
	path := writeConfig(t, `
[engine]
providers = ["opensubtitles", "opensubtitles"]
languages = ["en"]
`)
	if _, _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "twice") {
		t.Fatalf("Load = %v, want duplicate provider error", err)
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	path := writeConfig(t, `
[logging]
format = "xml"
`)
	if _, _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("Load = %v, want logging.format error", err)
	}
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENSUBTITLES_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers["opensubtitles"].APIKey != "env-key" {
		t.Fatalf("api key not taken from env: %+v", cfg.Providers["opensubtitles"])
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if filepath.Base(cfg.BlacklistPath()) != "blacklist.db" {
		t.Fatalf("BlacklistPath = %q", cfg.BlacklistPath())
	}
	if filepath.Base(cfg.PackCachePath()) != "packs.db" {
		t.Fatalf("PackCachePath = %q", cfg.PackCachePath())
	}
	if filepath.Dir(cfg.LockPath()) != cfg.Paths.DataDir {
		t.Fatalf("LockPath = %q", cfg.LockPath())
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	path := writeConfig(t, Sample())
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config rejected: %v", err)
	}
}
