// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: prod or dev.
	Mode string `toml:"mode" env:"DAYMARK_MODE"`

	// PublicOrigin is the public origin (scheme + host + port) for this instance.
	// Example: "https://localhost:8600"
	PublicOrigin string `toml:"public_origin" env:"DAYMARK_PUBLIC_ORIGIN"`

	// ExternalBasePath is the optional path prefix for app endpoints.
	// Example: "/daymark" or empty string
	ExternalBasePath string `toml:"external_base_path" env:"DAYMARK_EXTERNAL_BASE_PATH"`

	// ListenAddr is the address to listen on.
	// Example: ":8600"
	ListenAddr string `toml:"listen_addr" env:"DAYMARK_LISTEN_ADDR"`

	// Server holds server-level settings.
	Server ServerConfig `toml:"server"`

	// TLS configuration
	TLS TLSConfig `toml:"tls"`

	// Store configuration
	Store StoreConfig `toml:"store"`

	// Cache configuration
	Cache CacheConfig `toml:"cache"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// Retention configuration
	Retention RetentionConfig `toml:"retention"`

	// RateLimit configuration
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies is a list of CIDR ranges for trusted reverse proxies.
	// X-Forwarded-* headers are only honored from these addresses.
	// Default: ["127.0.0.0/8", "::1/128"]
	TrustedProxies []string `toml:"trusted_proxies"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: info in prod mode, debug in dev mode.
	Level string `toml:"level" env:"DAYMARK_LOG_LEVEL"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver is the store driver name: "sqlite" (default) or "memory".
	Driver string `toml:"driver" env:"DAYMARK_STORE_DRIVER"`

	// DataDir is where file-backed drivers keep their data.
	DataDir string `toml:"data_dir" env:"DAYMARK_STORE_DATA_DIR"`

	// Drivers holds per-driver configuration.
	// Example: [store.drivers.sqlite] ...
	Drivers map[string]any `toml:"drivers"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is the cache driver name: "memory" (default).
	Driver string `toml:"driver" env:"DAYMARK_CACHE_DRIVER"`

	// Drivers holds per-driver configuration.
	// Example: [cache.drivers.memory] ...
	Drivers map[string]any `toml:"drivers"`
}

// RetentionConfig holds deleted-event retention settings.
type RetentionConfig struct {
	// ReportSchedule is a cron expression for the retention report.
	// Default: "@hourly".
	ReportSchedule string `toml:"report_schedule" env:"DAYMARK_RETENTION_REPORT_SCHEDULE"`
}

// RateLimitConfig holds API rate limiting settings.
type RateLimitConfig struct {
	// Enabled turns rate limiting on. Default: true in prod, false in dev.
	Enabled bool `toml:"enabled"`

	// RequestsPerWindow is the per-client request budget. Default: 300.
	RequestsPerWindow int64 `toml:"requests_per_window"`

	// WindowSeconds is the budget window in seconds. Default: 60.
	WindowSeconds int `toml:"window_seconds"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `toml:"mode" env:"DAYMARK_TLS_MODE"`

	// CertFile and KeyFile for static mode
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// HTTPPort for HTTP listener (used for ACME challenges and redirects)
	HTTPPort int `toml:"http_port"`

	// HTTPSPort for HTTPS listener
	HTTPSPort int `toml:"https_port"`

	// SelfSignedDir is where self-signed certs are stored
	SelfSignedDir string `toml:"self_signed_dir"`

	// RootCAFile and RootCADir hold extra trust roots, merged with the
	// system pool for ACME directory communication.
	RootCAFile string `toml:"root_ca_file"`
	RootCADir  string `toml:"root_ca_dir"`

	// ACME configuration
	ACME ACMEConfig `toml:"acme"`
}

// ACMEConfig holds ACME/Let's Encrypt settings.
type ACMEConfig struct {
	// Email for ACME registration
	Email string `toml:"email"`

	// Domain is the domain to obtain a certificate for
	Domain string `toml:"domain"`

	// Directory is the ACME server URL (default: Let's Encrypt production)
	Directory string `toml:"directory"`

	// StorageDir is where ACME certificates and account info are stored
	StorageDir string `toml:"storage_dir"`

	// UseStaging uses Let's Encrypt staging (for testing)
	UseStaging bool `toml:"use_staging"`
}

// Redacted returns a string representation of the config suitable for
// startup logging.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString(fmt.Sprintf("  PublicOrigin: %q,\n", c.PublicOrigin))
	sb.WriteString(fmt.Sprintf("  ExternalBasePath: %q,\n", c.ExternalBasePath))
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString("  Server: {\n")
	sb.WriteString(fmt.Sprintf("    TrustedProxies: %v,\n", c.Server.TrustedProxies))
	sb.WriteString("  },\n")
	sb.WriteString("  TLS: {\n")
	sb.WriteString(fmt.Sprintf("    Mode: %q,\n", c.TLS.Mode))
	sb.WriteString(fmt.Sprintf("    CertFile: %q,\n", c.TLS.CertFile))
	sb.WriteString(fmt.Sprintf("    KeyFile: %q,\n", c.TLS.KeyFile))
	sb.WriteString(fmt.Sprintf("    HTTPPort: %d,\n", c.TLS.HTTPPort))
	sb.WriteString(fmt.Sprintf("    HTTPSPort: %d,\n", c.TLS.HTTPSPort))
	sb.WriteString(fmt.Sprintf("    SelfSignedDir: %q,\n", c.TLS.SelfSignedDir))
	sb.WriteString(fmt.Sprintf("    ACME.Domain: %q,\n", c.TLS.ACME.Domain))
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	sb.WriteString("  },\n")
	sb.WriteString("  Cache: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Cache.Driver))
	sb.WriteString("  },\n")
	sb.WriteString("  Logging: {\n")
	sb.WriteString(fmt.Sprintf("    Level: %q,\n", c.Logging.Level))
	sb.WriteString("  },\n")
	sb.WriteString("  Retention: {\n")
	sb.WriteString(fmt.Sprintf("    ReportSchedule: %q,\n", c.Retention.ReportSchedule))
	sb.WriteString("  },\n")
	sb.WriteString("  RateLimit: {\n")
	sb.WriteString(fmt.Sprintf("    Enabled: %v,\n", c.RateLimit.Enabled))
	sb.WriteString(fmt.Sprintf("    RequestsPerWindow: %d,\n", c.RateLimit.RequestsPerWindow))
	sb.WriteString(fmt.Sprintf("    WindowSeconds: %d,\n", c.RateLimit.WindowSeconds))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}

// PublicScheme returns "http" or "https" from PublicOrigin.
// Returns "https" if PublicOrigin is empty or unparseable.
func (c *Config) PublicScheme() string {
	if c.PublicOrigin == "" {
		return "https"
	}
	u, err := url.Parse(c.PublicOrigin)
	if err != nil || u.Scheme == "" {
		return "https"
	}
	return strings.ToLower(u.Scheme)
}

// DriverOptions returns the raw option map for the named store driver.
func (c *StoreConfig) DriverOptions(driver string) map[string]any {
	return subMap(c.Drivers, driver)
}

// DriverOptions returns the raw option map for the named cache driver.
func (c *CacheConfig) DriverOptions(driver string) map[string]any {
	return subMap(c.Drivers, driver)
}

func subMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	raw, ok := m[key]
	if !ok {
		return nil
	}
	opts, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	// Return a copy to prevent mutation
	result := make(map[string]any, len(opts))
	for k, v := range opts {
		result[k] = v
	}
	return result
}
