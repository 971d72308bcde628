package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Database.Port)
	}
	if len(cfg.Collector.Regions) != 3 {
		t.Errorf("Expected 3 default regions, got %v", cfg.Collector.Regions)
	}
	if cfg.Collector.RegionDelay() != time.Second {
		t.Errorf("Expected 1s region delay, got %v", cfg.Collector.RegionDelay())
	}
	if cfg.OpenSky.RequestInterval() != 5*time.Second {
		t.Errorf("Expected 5s request interval, got %v", cfg.OpenSky.RequestInterval())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile tests that Load returns default config when file doesn't exist.
func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("Expected default port, got %s", cfg.Server.Port)
	}
}

// TestLoadFormats tests that each supported format decodes onto the defaults.
func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "JSON",
			file: "config.json",
			content: `{
  "server": {"port": "9090"},
  "database": {"driver": "sqlite", "path": "/tmp/trail.db"},
  "collector": {"regions": ["europe"], "region_delay_seconds": 2.5}
}`,
		},
		{
			name: "TOML",
			file: "config.toml",
			content: `
[server]
port = "9090"

[database]
driver = "sqlite"
path = "/tmp/trail.db"

[collector]
regions = ["europe"]
region_delay_seconds = 2.5
`,
		},
		{
			name: "YAML",
			file: "config.yaml",
			content: `
server:
  port: "9090"
database:
  driver: sqlite
  path: /tmp/trail.db
collector:
  regions: [europe]
  region_delay_seconds: 2.5
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if cfg.Server.Port != "9090" {
				t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
			}
			if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "/tmp/trail.db" {
				t.Errorf("Unexpected database config: %+v", cfg.Database)
			}
			if cfg.Collector.RegionDelay() != 2500*time.Millisecond {
				t.Errorf("Expected 2.5s delay, got %v", cfg.Collector.RegionDelay())
			}
			regions, err := cfg.Collector.LedgerRegions()
			if err != nil || len(regions) != 1 || regions[0] != flight.RegionEurope {
				t.Errorf("Expected [europe], got %v (%v)", regions, err)
			}

			// Untouched sections keep defaults
			if cfg.Server.Host != "0.0.0.0" {
				t.Errorf("Expected default host, got %s", cfg.Server.Host)
			}
			if cfg.OpenSky.TimeoutSeconds != 15 {
				t.Errorf("Expected default timeout, got %d", cfg.OpenSky.TimeoutSeconds)
			}
		})
	}
}

// TestLoadInvalidFile tests parse errors.
func TestLoadInvalidFile(t *testing.T) {
	for _, file := range []string{"bad.json", "bad.toml", "bad.yaml"} {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), file)
			if err := os.WriteFile(path, []byte("{ this is : not [ valid"), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Expected parse error")
			}
		})
	}
}

// TestSaveConfigRoundTrip tests saving and loading in every format.
func TestSaveConfigRoundTrip(t *testing.T) {
	for _, file := range []string{"out.json", "out.toml", "out.yml"} {
		t.Run(file, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.Port = "7000"
			cfg.Collector.Regions = []string{"usa", "eastAsia"}
			cfg.Notify.NATSURL = "nats://broker:4222"

			path := filepath.Join(t.TempDir(), "nested", file)
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Server.Port != "7000" {
				t.Errorf("Expected port 7000, got %s", loaded.Server.Port)
			}
			if strings.Join(loaded.Collector.Regions, ",") != "usa,eastAsia" {
				t.Errorf("Unexpected regions: %v", loaded.Collector.Regions)
			}
			if loaded.Notify.NATSURL != "nats://broker:4222" {
				t.Errorf("Unexpected NATS URL: %s", loaded.Notify.NATSURL)
			}
		})
	}
}

// TestEnvironmentOverrides tests that environment variables win over the file.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FLIGHTTRAIL_PORT", "7777")
	t.Setenv("FLIGHTTRAIL_DB_PASSWORD", "env-password")
	t.Setenv("FLIGHTTRAIL_DB_PATH", "/data/env.db")
	t.Setenv("OPENSKY_CLIENT_ID", "env-id")
	t.Setenv("OPENSKY_CLIENT_SECRET", "env-secret")
	t.Setenv("CRON_SECRET", "env-cron")
	t.Setenv("FLIGHTTRAIL_NATS_URL", "nats://env:4222")
	t.Setenv("FLIGHTTRAIL_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server":{"port":"9090"},"auth":{"cron_secret":"file"}}`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Errorf("Expected port 7777, got %s", cfg.Server.Port)
	}
	if cfg.Database.Password != "env-password" {
		t.Errorf("Expected env password, got %s", cfg.Database.Password)
	}
	if cfg.Database.Path != "/data/env.db" {
		t.Errorf("Expected env db path, got %s", cfg.Database.Path)
	}
	if cfg.OpenSky.ClientID != "env-id" || cfg.OpenSky.ClientSecret != "env-secret" {
		t.Errorf("Expected env OpenSky credentials, got %+v", cfg.OpenSky)
	}
	if cfg.Auth.CronSecret != "env-cron" {
		t.Errorf("Expected env cron secret, got %s", cfg.Auth.CronSecret)
	}
	if cfg.Notify.NATSURL != "nats://env:4222" {
		t.Errorf("Expected env NATS URL, got %s", cfg.Notify.NATSURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
}

// TestValidate tests rejection of unusable configurations.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"SQLite without path", func(c *Config) { c.Database.Driver = DriverSQLite; c.Database.Path = "" }, "requires database.path"},
		{"World is not a ledger region", func(c *Config) { c.Collector.Regions = []string{"world"} }, "invalid collector region"},
		{"Negative delay", func(c *Config) { c.Collector.RegionDelaySeconds = -1 }, "must not be negative"},
		{"Negative rate limit", func(c *Config) { c.OpenSky.RateLimitSeconds = -1 }, "must not be negative"},
		{"Bad level", func(c *Config) { c.Logging.Level = "loud" }, "unknown log level"},
		{"Bad format", func(c *Config) { c.Logging.Format = "xml" }, "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	none := DefaultConfig()
	none.Database.Driver = DriverNone
	if err := none.Validate(); err != nil {
		t.Errorf("Expected driver none to validate, got %v", err)
	}
}
