package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file and
	// environment values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr       *string
	PublicOrigin     *string
	ExternalBasePath *string
	TLSMode          *string
	StoreDriver      *string
	StoreDataDir     *string
	CacheDriver      *string
	LoggingLevel     *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode string `toml:"mode"`

	PublicOrigin     string `toml:"public_origin"`
	ExternalBasePath string `toml:"external_base_path"`
	ListenAddr       string `toml:"listen_addr"`

	Server    *ServerConfig    `toml:"server"`
	TLS       *TLSConfig       `toml:"tls"`
	Store     *StoreConfig     `toml:"store"`
	Cache     *CacheConfig     `toml:"cache"`
	Logging   *LoggingConfig   `toml:"logging"`
	Retention *RetentionConfig `toml:"retention"`
	RateLimit *RateLimitConfig `toml:"rate_limit"`
}

// Load builds the effective configuration. Precedence, lowest first:
// mode preset, TOML file, environment variables, CLI flags.
// Unknown TOML keys produce a warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	// Step 1: Load TOML file if provided
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	// Step 2: Determine effective mode
	modeStr := fc.Mode
	if v := os.Getenv("DAYMARK_MODE"); v != "" {
		modeStr = v
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	// Step 3: Start from mode preset
	cfg := presetForMode(mode)

	// Step 4: Overlay TOML values
	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	// Step 5: Overlay environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Step 6: Overlay CLI flags
	overlayFlags(cfg, opts.FlagOverrides)

	// Step 7: Validate (fatal on invalid values)
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	cfg := &Config{
		Mode:         string(mode),
		PublicOrigin: "https://localhost:8600",
		ListenAddr:   ":8600",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		TLS: TLSConfig{
			Mode:      "selfsigned",
			HTTPPort:  8680,
			HTTPSPort: 8600,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".daymark/data",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Retention: RetentionConfig{
			ReportSchedule: "@hourly",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 300,
			WindowSeconds:     60,
		},
	}

	if mode == ModeDev {
		cfg.PublicOrigin = "http://localhost:8600"
		cfg.TLS.Mode = "off"
		cfg.Store.Driver = "memory"
		cfg.Logging.Level = "debug"
		cfg.RateLimit.Enabled = false
	}
	return cfg
}

// overlayFileConfig applies TOML values over the preset. Only values
// the file actually sets are applied.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.PublicOrigin != "" {
		cfg.PublicOrigin = fc.PublicOrigin
	}
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.Server != nil && len(fc.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = fc.Server.TrustedProxies
	}
	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.HTTPPort != 0 {
			cfg.TLS.HTTPPort = fc.TLS.HTTPPort
		}
		if fc.TLS.HTTPSPort != 0 {
			cfg.TLS.HTTPSPort = fc.TLS.HTTPSPort
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
		if fc.TLS.RootCAFile != "" {
			cfg.TLS.RootCAFile = fc.TLS.RootCAFile
		}
		if fc.TLS.RootCADir != "" {
			cfg.TLS.RootCADir = fc.TLS.RootCADir
		}
		if fc.TLS.ACME.Email != "" {
			cfg.TLS.ACME.Email = fc.TLS.ACME.Email
		}
		if fc.TLS.ACME.Domain != "" {
			cfg.TLS.ACME.Domain = fc.TLS.ACME.Domain
		}
		if fc.TLS.ACME.Directory != "" {
			cfg.TLS.ACME.Directory = fc.TLS.ACME.Directory
		}
		if fc.TLS.ACME.StorageDir != "" {
			cfg.TLS.ACME.StorageDir = fc.TLS.ACME.StorageDir
		}
		if fc.TLS.ACME.UseStaging {
			cfg.TLS.ACME.UseStaging = true
		}
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
		if fc.Store.Drivers != nil {
			cfg.Store.Drivers = fc.Store.Drivers
		}
	}
	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Drivers != nil {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}
	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
	if fc.Retention != nil && fc.Retention.ReportSchedule != "" {
		cfg.Retention.ReportSchedule = fc.Retention.ReportSchedule
	}
	if fc.RateLimit != nil {
		cfg.RateLimit.Enabled = fc.RateLimit.Enabled
		if fc.RateLimit.RequestsPerWindow != 0 {
			cfg.RateLimit.RequestsPerWindow = fc.RateLimit.RequestsPerWindow
		}
		if fc.RateLimit.WindowSeconds != 0 {
			cfg.RateLimit.WindowSeconds = fc.RateLimit.WindowSeconds
		}
	}
}

// overlayFlags applies CLI flag values over everything else.
func overlayFlags(cfg *Config, flags FlagOverrides) {
	if flags.ListenAddr != nil && *flags.ListenAddr != "" {
		cfg.ListenAddr = *flags.ListenAddr
	}
	if flags.PublicOrigin != nil && *flags.PublicOrigin != "" {
		cfg.PublicOrigin = *flags.PublicOrigin
	}
	if flags.ExternalBasePath != nil && *flags.ExternalBasePath != "" {
		cfg.ExternalBasePath = *flags.ExternalBasePath
	}
	if flags.TLSMode != nil && *flags.TLSMode != "" {
		cfg.TLS.Mode = *flags.TLSMode
	}
	if flags.StoreDriver != nil && *flags.StoreDriver != "" {
		cfg.Store.Driver = *flags.StoreDriver
	}
	if flags.StoreDataDir != nil && *flags.StoreDataDir != "" {
		cfg.Store.DataDir = *flags.StoreDataDir
	}
	if flags.CacheDriver != nil && *flags.CacheDriver != "" {
		cfg.Cache.Driver = *flags.CacheDriver
	}
	if flags.LoggingLevel != nil && *flags.LoggingLevel != "" {
		cfg.Logging.Level = *flags.LoggingLevel
	}
}

// validate checks enum fields and the public origin. Fails fast so a
// bad deployment never starts serving.
func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.Store.Driver == "" {
		return fmt.Errorf("store.driver must not be empty")
	}

	if cfg.ExternalBasePath != "" && !strings.HasPrefix(cfg.ExternalBasePath, "/") {
		return fmt.Errorf("external_base_path %q must start with /", cfg.ExternalBasePath)
	}

	u, err := url.Parse(cfg.PublicOrigin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid public_origin %q: must be scheme://host[:port]", cfg.PublicOrigin)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid public_origin scheme %q: must be http or https", u.Scheme)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("public_origin %q must not contain a path; use external_base_path", cfg.PublicOrigin)
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate_limit.requests_per_window must be positive")
		}
		if cfg.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("rate_limit.window_seconds must be positive")
		}
	}

	return nil
}
