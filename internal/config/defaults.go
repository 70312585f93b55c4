package config

const (
	defaultDataDir          = "~/.local/share/subscout"
	defaultLogDir           = "~/.local/share/subscout/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultMinScore         = 0
	defaultVideoConcurrency = 2
	defaultVideoTimeout     = 300
	defaultMaxAttempts      = 3
	defaultRetryDelay       = 2
	defaultQueryTimeout     = 45
	defaultUserAgent        = "subscout/dev"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Engine: Engine{
			Providers:           []string{"opensubtitles", "podnapisi", "supersubtitles"},
			Languages:           []string{"en"},
			MinScore:            defaultMinScore,
			VideoConcurrency:    defaultVideoConcurrency,
			VideoTimeoutSeconds: defaultVideoTimeout,
		},
		Pool: Pool{
			MaxAttempts:         defaultMaxAttempts,
			RetryDelaySeconds:   defaultRetryDelay,
			QueryTimeoutSeconds: defaultQueryTimeout,
		},
		Providers: map[string]Provider{
			"opensubtitles": {
				UserAgent:         defaultUserAgent,
				RequestsPerMinute: 40,
			},
			"podnapisi": {
				UserAgent:         defaultUserAgent,
				RequestsPerMinute: 30,
			},
			"supersubtitles": {
				UserAgent:         defaultUserAgent,
				RequestsPerMinute: 30,
			},
		},
	}
}
