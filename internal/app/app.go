// Package app wires configuration into the running components shared by the
// command entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unklstewy/flighttrail/internal/collector"
	"github.com/unklstewy/flighttrail/internal/db"
	"github.com/unklstewy/flighttrail/internal/history"
	"github.com/unklstewy/flighttrail/internal/notify"
	"github.com/unklstewy/flighttrail/pkg/config"
	"github.com/unklstewy/flighttrail/pkg/opensky"
	"go.uber.org/zap"
)

// App holds the components built from one configuration.
// DB is nil when the database driver is "none".
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB            *db.DB
	Feed          *opensky.Client
	Limits        *opensky.RateLimitTracker
	Settings      *history.SettingsCache
	Writer        *history.Writer
	Sweeper       *history.Sweeper
	Reconstructor *history.Reconstructor
	Collector     *collector.Collector

	nats *notify.NATSPublisher
}

// New validates cfg, connects to the database and builds every component.
// ctx bounds the connection attempts and is kept by the OAuth2 token source,
// so it should live as long as the process.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	database, err := db.ReconnectWithRetry(ctx, cfg.Database, cfg.Database.ConnectRetries, time.Second, logger)
	switch {
	case errors.Is(err, db.ErrDisabled):
		logger.Warn("Database disabled, positions will not be stored")
	case err != nil:
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	default:
		if err := database.InitSchema(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.DB = database
	}

	// Keep the interfaces nil rather than holding typed nil pointers
	var ledger history.Ledger
	var store history.SettingsStore
	if a.DB != nil {
		ledger = db.NewPositionRepository(a.DB)
		store = db.NewSettingsRepository(a.DB)
	}

	a.Settings = history.NewSettingsCache(store, cfg.Collector.SettingsCacheTTL(), logger)
	a.Writer = history.NewWriter(ledger, logger)
	a.Sweeper = history.NewSweeper(ledger, a.Settings, logger)
	a.Reconstructor = history.NewReconstructor(ledger, logger)

	creds := opensky.Credentials{
		ClientID:     cfg.OpenSky.ClientID,
		ClientSecret: cfg.OpenSky.ClientSecret,
		TokenURL:     cfg.OpenSky.TokenURL,
	}
	a.Limits = opensky.NewRateLimitTracker()
	a.Feed = opensky.NewClient(opensky.ClientConfig{
		BaseURL:         cfg.OpenSky.BaseURL,
		Timeout:         cfg.OpenSky.Timeout(),
		RequestInterval: cfg.OpenSky.RequestInterval(),
		TokenSource:     opensky.NewTokenSource(ctx, creds),
		Limits:          a.Limits,
	})
	if !creds.Configured() {
		logger.Warn("OpenSky credentials not set, using anonymous quota",
			zap.Int("daily_limit", opensky.AnonymousDailyLimit))
	}

	regions, _ := cfg.Collector.LedgerRegions()
	a.Collector = collector.New(collector.Config{
		Regions:         regions,
		RegionDelay:     cfg.Collector.RegionDelay(),
		CleanupInterval: cfg.Collector.CleanupInterval(),
		JobTimeout:      cfg.Collector.JobTimeout(),
		Retry:           RetryConfig(cfg.Collector),
	}, collector.Options{
		Feed:     a.Feed,
		Limits:   a.Limits,
		Writer:   a.Writer,
		Sweeper:  a.Sweeper,
		Settings: a.Settings,
		Logger:   logger,
	})

	if cfg.Notify.NATSURL != "" {
		pub, err := notify.Dial(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
		if err != nil {
			// Summaries are informational; the job runs without them
			logger.Warn("Job summaries will not be published", zap.Error(err))
		} else {
			a.nats = pub
			a.Collector.AddPublisher(pub)
		}
	}

	return a, nil
}

// RetryConfig converts the collector settings into feed retry settings.
func RetryConfig(c config.CollectorConfig) opensky.RetryConfig {
	retry := opensky.DefaultRetryConfig()
	retry.MaxRetries = c.MaxRetries
	if c.InitialRetrySeconds > 0 {
		retry.InitialDelay = time.Duration(c.InitialRetrySeconds * float64(time.Second))
	}
	if c.MaxRetrySeconds > 0 {
		retry.MaxDelay = time.Duration(c.MaxRetrySeconds * float64(time.Second))
	}
	return retry
}

// Health reports whether the database answers. It is nil without a database.
func (a *App) Health() func(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return db.HealthCheck(ctx, a.DB)
	}
}

// Close drains the NATS connection and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
