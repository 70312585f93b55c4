package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Engine contains the resolution policy configuration.
type Engine struct {
	// Providers lists enabled providers in priority order; the order is the
	// selection tie-break after the score.
	Providers []string `toml:"providers"`
	// Languages lists requested subtitle languages in priority order, as
	// IETF codes ("en", "pt-BR") with an optional ":forced" suffix.
	Languages                []string `toml:"languages"`
	OnlyOne                  bool     `toml:"only_one"`
	IETFAsAlpha3             bool     `toml:"ietf_as_alpha3"`
	AudioMatchSatisfies      bool     `toml:"audio_match_satisfies"`
	IncludeMetadataLanguages bool     `toml:"include_metadata_languages"`
	ExcludeHearingImpaired   bool     `toml:"exclude_hearing_impaired"`
	MinScore                 int      `toml:"min_score"`
	VideoConcurrency         int      `toml:"video_concurrency"`
	VideoTimeoutSeconds      int      `toml:"video_timeout_seconds"`
}

// Pool contains provider retry and timeout configuration.
type Pool struct {
	MaxAttempts         int `toml:"max_attempts"`
	RetryDelaySeconds   int `toml:"retry_delay_seconds"`
	QueryTimeoutSeconds int `toml:"query_timeout_seconds"`
}

// Provider contains per-provider credential and throttle configuration.
type Provider struct {
	APIKey            string `toml:"api_key"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	UserAgent         string `toml:"user_agent"`
	UserToken         string `toml:"user_token"`
	BaseURL           string `toml:"base_url"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Config encapsulates all configuration values for the resolver.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Logging: log format and level
//   - Engine: requested languages and the resolution policy
//   - Pool: provider retry and timeout behavior
//   - Providers: per-provider credentials and throttles
type Config struct {
	Paths     Paths               `toml:"paths"`
	Logging   Logging             `toml:"logging"`
	Engine    Engine              `toml:"engine"`
	Pool      Pool                `toml:"pool"`
	Providers map[string]Provider `toml:"providers"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subscout/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("subscout.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
	if key, ok := os.LookupEnv("OPENSUBTITLES_API_KEY"); ok {
		p := c.Providers["opensubtitles"]
		if p.APIKey == "" {
			p.APIKey = key
			c.Providers["opensubtitles"] = p
		}
	}
	return nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// BlacklistPath returns the blacklist database location.
func (c *Config) BlacklistPath() string {
	return filepath.Join(c.Paths.DataDir, "blacklist.db")
}

// PackCachePath returns the pack archive cache location.
func (c *Config) PackCachePath() string {
	return filepath.Join(c.Paths.DataDir, "packs.db")
}

// LockPath returns the run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "subscout.lock")
}

// Sample returns the embedded sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves ~ and relative segments into an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
