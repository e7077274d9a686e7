package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daymark-app/daymark/internal/platform/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daymark.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mode != "prod" {
		t.Errorf("mode = %q, want prod", cfg.Mode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Cache.Driver != "memory" {
		t.Errorf("cache driver = %q, want memory", cfg.Cache.Driver)
	}
	if cfg.TLS.Mode != "selfsigned" {
		t.Errorf("tls mode = %q, want selfsigned", cfg.TLS.Mode)
	}
	if cfg.Retention.ReportSchedule != "@hourly" {
		t.Errorf("report schedule = %q", cfg.Retention.ReportSchedule)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("rate limiting must default on in prod")
	}
}

func TestLoadDevPreset(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{ModeFlag: "dev"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TLS.Mode != "off" {
		t.Errorf("dev tls mode = %q, want off", cfg.TLS.Mode)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("dev store driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("dev log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limiting must default off in dev")
	}
}

func TestLoadTOMLOverridesPreset(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9000"
public_origin = "https://cal.example.com"

[store]
driver = "sqlite"
data_dir = "/var/lib/daymark"

[store.drivers.sqlite]
busy_timeout_ms = 10000

[retention]
report_schedule = "@daily"
`)

	cfg, err := config.Load(config.LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.PublicOrigin != "https://cal.example.com" {
		t.Errorf("public_origin = %q", cfg.PublicOrigin)
	}
	if cfg.Store.DataDir != "/var/lib/daymark" {
		t.Errorf("data_dir = %q", cfg.Store.DataDir)
	}
	if cfg.Retention.ReportSchedule != "@daily" {
		t.Errorf("report_schedule = %q", cfg.Retention.ReportSchedule)
	}

	opts := cfg.Store.DriverOptions("sqlite")
	if opts == nil {
		t.Fatal("sqlite driver options missing")
	}
	if _, ok := opts["busy_timeout_ms"]; !ok {
		t.Error("busy_timeout_ms missing from driver options")
	}
}

func TestLoadEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, `listen_addr = ":9000"`)
	t.Setenv("DAYMARK_LISTEN_ADDR", ":9100")
	t.Setenv("DAYMARK_LOG_LEVEL", "warn")

	cfg, err := config.Load(config.LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != ":9100" {
		t.Errorf("listen_addr = %q, want env value", cfg.ListenAddr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("DAYMARK_LISTEN_ADDR", ":9100")
	addr := ":9200"

	cfg, err := config.Load(config.LoaderOptions{
		FlagOverrides: config.FlagOverrides{ListenAddr: &addr},
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != ":9200" {
		t.Errorf("listen_addr = %q, want flag value", cfg.ListenAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(config.LoaderOptions{ConfigPath: "/no/such/file.toml"})
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		toml string
		want string
	}{
		{"bad tls mode", "[tls]\nmode = \"mtls\"", "tls.mode"},
		{"bad log level", "[logging]\nlevel = \"trace\"", "logging.level"},
		{"origin with path", `public_origin = "https://example.com/app"`, "external_base_path"},
		{"origin bad scheme", `public_origin = "ftp://example.com"`, "scheme"},
		{"base path without slash", `external_base_path = "daymark"`, "must start with /"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.toml)
			_, err := config.Load(config.LoaderOptions{ConfigPath: path})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadBadMode(t *testing.T) {
	if _, err := config.Load(config.LoaderOptions{ModeFlag: "staging"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestRedacted(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	out := cfg.Redacted()
	if !strings.Contains(out, "ListenAddr") || !strings.Contains(out, "Store") {
		t.Errorf("Redacted output incomplete: %s", out)
	}
}
