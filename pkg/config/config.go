package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/unklstewy/flighttrail/pkg/flight"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
// It can be loaded from a JSON, TOML or YAML file; the format is chosen by
// file extension.
type Config struct {
	Server    ServerConfig    `json:"server" toml:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" toml:"database" yaml:"database"`
	OpenSky   OpenSkyConfig   `json:"opensky" toml:"opensky" yaml:"opensky"`
	Collector CollectorConfig `json:"collector" toml:"collector" yaml:"collector"`
	Logging   LoggingConfig   `json:"logging" toml:"logging" yaml:"logging"`
	Notify    NotifyConfig    `json:"notify" toml:"notify" yaml:"notify"`
	Auth      AuthConfig      `json:"auth" toml:"auth" yaml:"auth"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" toml:"port" yaml:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" toml:"host" yaml:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled" toml:"tls_enabled" yaml:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file" toml:"tls_cert_file" yaml:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file" toml:"tls_key_file" yaml:"tls_key_file"`

	// AllowedOrigins lists CORS origins for the rendering client (default: "*")
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins"`

	// ShutdownTimeoutSeconds bounds graceful shutdown (default: 10)
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// DriverNone runs without a ledger; writes are counted as skipped
	DriverNone = "none"
)

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Driver is the database driver (postgres, sqlite, none)
	Driver string `json:"driver" toml:"driver" yaml:"driver"`

	// Host is the database server hostname
	Host string `json:"host" toml:"host" yaml:"host"`

	// Port is the database server port
	Port int `json:"port" toml:"port" yaml:"port"`

	// Database is the database name
	Database string `json:"database" toml:"database" yaml:"database"`

	// Username for database authentication
	Username string `json:"username" toml:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" toml:"password" yaml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" toml:"ssl_mode" yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections.
	// Forced to 1 for SQLite.
	MaxOpenConns int `json:"max_open_conns" toml:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" toml:"max_idle_conns" yaml:"max_idle_conns"`

	// Path is the SQLite database file (":memory:" for a throwaway ledger)
	Path string `json:"path" toml:"path" yaml:"path"`

	// ConnectRetries is how many times startup retries the connection (0 = forever)
	ConnectRetries int `json:"connect_retries" toml:"connect_retries" yaml:"connect_retries"`
}

// OpenSkyConfig contains the upstream flight-state feed settings.
type OpenSkyConfig struct {
	// BaseURL is the REST API base URL
	BaseURL string `json:"base_url" toml:"base_url" yaml:"base_url"`

	// TokenURL is the OAuth2 token endpoint
	TokenURL string `json:"token_url" toml:"token_url" yaml:"token_url"`

	// ClientID and ClientSecret enable authenticated access (4000 credits/day
	// instead of 400). Both should come from the environment.
	ClientID     string `json:"client_id" toml:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" toml:"client_secret" yaml:"client_secret"`

	// RateLimitSeconds is the minimum time between API calls in seconds
	// 0 = no client-side limit
	RateLimitSeconds float64 `json:"rate_limit_seconds" toml:"rate_limit_seconds" yaml:"rate_limit_seconds"`

	// TimeoutSeconds bounds each HTTP request
	TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// CollectorConfig contains the scheduled collection job settings.
// The polling period itself is a runtime setting stored in the ledger.
type CollectorConfig struct {
	// Regions to poll, in order (usa, europe, eastAsia)
	Regions []string `json:"regions" toml:"regions" yaml:"regions"`

	// RegionDelaySeconds is the pause between two region fetches
	RegionDelaySeconds float64 `json:"region_delay_seconds" toml:"region_delay_seconds" yaml:"region_delay_seconds"`

	// CleanupIntervalMinutes is how often the retention sweep runs
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes" toml:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`

	// JobTimeoutSeconds bounds one collection cycle
	JobTimeoutSeconds int `json:"job_timeout_seconds" toml:"job_timeout_seconds" yaml:"job_timeout_seconds"`

	// SettingsCacheSeconds is how long stored settings are cached
	SettingsCacheSeconds int `json:"settings_cache_seconds" toml:"settings_cache_seconds" yaml:"settings_cache_seconds"`

	// MaxRetries is the number of feed retries per region
	MaxRetries int `json:"max_retries" toml:"max_retries" yaml:"max_retries"`

	// InitialRetrySeconds and MaxRetrySeconds bound the retry backoff
	InitialRetrySeconds float64 `json:"initial_retry_seconds" toml:"initial_retry_seconds" yaml:"initial_retry_seconds"`
	MaxRetrySeconds     float64 `json:"max_retry_seconds" toml:"max_retry_seconds" yaml:"max_retry_seconds"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" toml:"level" yaml:"level"`

	// Format is "json" for production or "console" for development
	Format string `json:"format" toml:"format" yaml:"format"`
}

// NotifyConfig configures job summary publishing over NATS.
type NotifyConfig struct {
	// NATSURL enables publishing when set (e.g., "nats://localhost:4222")
	NATSURL string `json:"nats_url" toml:"nats_url" yaml:"nats_url"`

	// Subject is the subject job summaries are published on
	Subject string `json:"subject" toml:"subject" yaml:"subject"`
}

// AuthConfig protects the job trigger endpoint.
type AuthConfig struct {
	// CronSecret is the shared secret for /api/cron/flights. Empty disables the check.
	CronSecret string `json:"cron_secret" toml:"cron_secret" yaml:"cron_secret"`

	// TokenTTLMinutes is the lifetime of tokens minted by the CLI
	TokenTTLMinutes int `json:"token_ttl_minutes" toml:"token_ttl_minutes" yaml:"token_ttl_minutes"`
}

// Load reads configuration from a JSON, TOML or YAML file.
// Values missing from the file keep their defaults. If the file doesn't
// exist, returns the default configuration. Environment overrides are
// applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration in the format implied by the file extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "8080",
			Host:                   "0.0.0.0",
			TLSEnabled:             false,
			AllowedOrigins:         []string{"*"},
			ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			Driver:         DriverPostgres,
			Host:           "localhost",
			Port:           5432,
			Database:       "flighttrail",
			Username:       "flighttrail",
			SSLMode:        "disable",
			MaxOpenConns:   25,
			MaxIdleConns:   5,
			Path:           "flighttrail.db",
			ConnectRetries: 5,
		},
		OpenSky: OpenSkyConfig{
			BaseURL:          "https://opensky-network.org/api",
			TokenURL:         "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token",
			RateLimitSeconds: 5.0,
			TimeoutSeconds:   15,
		},
		Collector: CollectorConfig{
			Regions:                []string{"usa", "europe", "eastAsia"},
			RegionDelaySeconds:     1.0,
			CleanupIntervalMinutes: 60,
			JobTimeoutSeconds:      120,
			SettingsCacheSeconds:   60,
			MaxRetries:             2,
			InitialRetrySeconds:    1.0,
			MaxRetrySeconds:        30.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Notify: NotifyConfig{
			Subject: "flighttrail.jobs",
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 60,
		},
	}
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverNone:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		errs = append(errs, errors.New("sqlite driver requires database.path"))
	}

	if _, err := c.Collector.LedgerRegions(); err != nil {
		errs = append(errs, err)
	}
	if c.Collector.RegionDelaySeconds < 0 || c.Collector.CleanupIntervalMinutes < 0 ||
		c.Collector.JobTimeoutSeconds < 0 || c.Collector.SettingsCacheSeconds < 0 ||
		c.Collector.MaxRetries < 0 {
		errs = append(errs, errors.New("collector intervals and retries must not be negative"))
	}
	if c.OpenSky.RateLimitSeconds < 0 || c.OpenSky.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("opensky rate limit and timeout must not be negative"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// LedgerRegions resolves the configured region names.
func (c CollectorConfig) LedgerRegions() ([]flight.Region, error) {
	regions := make([]flight.Region, 0, len(c.Regions))
	for _, name := range c.Regions {
		r, err := flight.ParseRegion(name)
		if err != nil {
			return nil, fmt.Errorf("invalid collector region: %w", err)
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// RegionDelay returns RegionDelaySeconds as a duration.
func (c CollectorConfig) RegionDelay() time.Duration {
	return seconds(c.RegionDelaySeconds)
}

// CleanupInterval returns CleanupIntervalMinutes as a duration.
func (c CollectorConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// JobTimeout returns JobTimeoutSeconds as a duration.
func (c CollectorConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// SettingsCacheTTL returns SettingsCacheSeconds as a duration.
func (c CollectorConfig) SettingsCacheTTL() time.Duration {
	return time.Duration(c.SettingsCacheSeconds) * time.Second
}

// RequestInterval returns RateLimitSeconds as a duration.
func (c OpenSkyConfig) RequestInterval() time.Duration {
	return seconds(c.RateLimitSeconds)
}

// Timeout returns TimeoutSeconds as a duration.
func (c OpenSkyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenTTL returns TokenTTLMinutes as a duration.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// Address returns the host:port the server listens on.
func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("FLIGHTTRAIL_PORT"); port != "" {
		c.Server.Port = port
	}
	if driver := os.Getenv("FLIGHTTRAIL_DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dbPassword := os.Getenv("FLIGHTTRAIL_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if dbPath := os.Getenv("FLIGHTTRAIL_DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if clientID := os.Getenv("OPENSKY_CLIENT_ID"); clientID != "" {
		c.OpenSky.ClientID = clientID
	}
	if clientSecret := os.Getenv("OPENSKY_CLIENT_SECRET"); clientSecret != "" {
		c.OpenSky.ClientSecret = clientSecret
	}
	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		c.Auth.CronSecret = secret
	}
	if natsURL := os.Getenv("FLIGHTTRAIL_NATS_URL"); natsURL != "" {
		c.Notify.NATSURL = natsURL
	}
	if level := os.Getenv("FLIGHTTRAIL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
