package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/flighttrail/internal/api"
	"github.com/unklstewy/flighttrail/internal/app"
	"github.com/unklstewy/flighttrail/internal/auth"
	"github.com/unklstewy/flighttrail/internal/logging"
	"github.com/unklstewy/flighttrail/pkg/config"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	collect    = flag.Bool("collect", false, "Also run the scheduled collector in this process")
)

// The web server serves the flight-history API and the job websocket.
// Collection is triggered through /api/cron/flights unless -collect is set.
func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Web server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := api.NewHub(logger)
	defer hub.Close()
	a.Collector.AddPublisher(hub)

	srv := api.NewServer(api.Options{
		Feed:           a.Feed,
		Limits:         a.Limits,
		FeedConfigured: cfg.OpenSky.ClientID != "" && cfg.OpenSky.ClientSecret != "",
		Writer:         a.Writer,
		Reconstructor:  a.Reconstructor,
		Settings:       a.Settings,
		Collector:      a.Collector,
		Stats:          statsSource(a),
		Health:         a.Health(),
		Auth: auth.NewService(auth.Config{
			Secret:        cfg.Auth.CronSecret,
			TokenDuration: cfg.Auth.TokenTTL(),
		}),
		Hub:            hub,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	if cfg.Auth.CronSecret == "" {
		logger.Warn("No cron secret configured, job trigger and settings are unprotected")
	}

	// The cron route runs a whole job inside the request
	writeTimeout := cfg.Collector.JobTimeout() + 15*time.Second
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if *collect {
		go a.Collector.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			zap.String("addr", httpServer.Addr),
			zap.Bool("tls", cfg.Server.TLSEnabled),
			zap.Bool("collector", *collect))

		var err error
		if cfg.Server.TLSEnabled {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// statsSource keeps a missing database a nil interface.
func statsSource(a *app.App) api.StatsSource {
	if a.DB == nil {
		return nil
	}
	return a.DB
}
