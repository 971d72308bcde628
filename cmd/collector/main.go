package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unklstewy/flighttrail/internal/app"
	"github.com/unklstewy/flighttrail/internal/logging"
	"github.com/unklstewy/flighttrail/pkg/config"
	"go.uber.org/zap"
)

// The collector polls the configured regions and stores their positions,
// sweeping expired records on its own schedule. Several API servers can
// share one collector and its ledger without spending extra feed quota.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single job and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start collector", zap.Error(err))
	}
	defer a.Close()

	regions, _ := cfg.Collector.LedgerRegions()
	logger.Info("Collector starting",
		zap.String("config", *configPath),
		zap.Stringers("regions", regions),
		zap.Duration("region_delay", cfg.Collector.RegionDelay()),
		zap.Duration("cleanup_interval", cfg.Collector.CleanupInterval()),
		zap.Bool("database", a.DB != nil))

	if *once {
		summary := a.Collector.RunOnce(ctx)
		if !summary.Success {
			logger.Error("Job did not complete")
			a.Close()
			os.Exit(1)
		}
		return
	}

	a.Collector.Run(ctx)
	logger.Info("Collector stopped")
}
