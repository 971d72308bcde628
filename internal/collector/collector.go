// Package collector runs the scheduled collection job: fetch every
// configured region from the feed, store what moved, then expire old records.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unklstewy/flighttrail/internal/history"
	"github.com/unklstewy/flighttrail/pkg/flight"
	"github.com/unklstewy/flighttrail/pkg/opensky"
	"go.uber.org/zap"
)

// idleRecheck is how often Run looks at the settings again while polling
// is disabled.
const idleRecheck = time.Minute

// Feed fetches raw state vectors.
type Feed interface {
	GetStates(ctx context.Context, box *opensky.BoundingBox) ([]opensky.StateVector, error)
}

// Config controls the job.
type Config struct {
	// Regions are fetched in order
	Regions []flight.Region

	// RegionDelay is the pause between two region fetches
	RegionDelay time.Duration

	// CleanupInterval runs an extra sweep between jobs. 0 disables it.
	CleanupInterval time.Duration

	// JobTimeout bounds a single job. 0 means no limit.
	JobTimeout time.Duration

	// Retry is applied to each region fetch
	Retry opensky.RetryConfig
}

// Options are the collaborators of a Collector.
type Options struct {
	Feed       Feed
	Limits     *opensky.RateLimitTracker
	Writer     *history.Writer
	Sweeper    *history.Sweeper
	Settings   *history.SettingsCache
	Publishers []Publisher
	Logger     *zap.Logger
}

// Collector runs collection jobs. Jobs never overlap.
type Collector struct {
	cfg        Config
	feed       Feed
	limits     *opensky.RateLimitTracker
	writer     *history.Writer
	sweeper    *history.Sweeper
	settings   *history.SettingsCache
	publishers []Publisher
	logger     *zap.Logger
	now        func() time.Time

	// mu serializes jobs started by Run and by on-demand triggers
	mu sync.Mutex
}

// New creates a collector.
func New(cfg Config, opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("collector")

	if opts.Limits == nil {
		opts.Limits = opensky.NewRateLimitTracker()
	}
	if opts.Writer == nil {
		opts.Writer = history.NewWriter(nil, logger)
	}
	if opts.Settings == nil {
		opts.Settings = history.NewSettingsCache(nil, 0, logger)
	}
	if opts.Sweeper == nil {
		opts.Sweeper = history.NewSweeper(nil, opts.Settings, logger)
	}

	retry := cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("Feed request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay),
				zap.Error(err))
		}
	}
	cfg.Retry = retry

	return &Collector{
		cfg:        cfg,
		feed:       opts.Feed,
		limits:     opts.Limits,
		writer:     opts.Writer,
		sweeper:    opts.Sweeper,
		settings:   opts.Settings,
		publishers: opts.Publishers,
		logger:     logger,
		now:        time.Now,
	}
}

// AddPublisher registers a publisher for later job summaries.
func (c *Collector) AddPublisher(p Publisher) {
	c.mu.Lock()
	c.publishers = append(c.publishers, p)
	c.mu.Unlock()
}

// RunOnce runs one full job and returns its summary. Failures of a region
// are recorded in the summary and do not stop the remaining regions.
func (c *Collector) RunOnce(ctx context.Context) JobSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.JobTimeout)
		defer cancel()
	}

	start := c.now()
	summary := JobSummary{Regions: make([]RegionResult, 0, len(c.cfg.Regions))}

	for i, region := range c.cfg.Regions {
		if i > 0 && c.cfg.RegionDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.RegionDelay):
			}
		}
		summary.addRegion(c.collectRegion(ctx, region))
	}

	summary.Cleanup.Deleted = c.sweeper.Sweep(ctx)

	status := c.limits.Snapshot()
	summary.RateLimit = RateLimitSummary{
		Remaining:     status.Remaining,
		Authenticated: status.Authenticated,
	}
	summary.Success = ctx.Err() == nil
	summary.Timestamp = c.now().UTC()
	summary.DurationMs = c.now().Sub(start).Milliseconds()

	c.logger.Info("Collection job completed",
		zap.Bool("success", summary.Success),
		zap.Int64("duration_ms", summary.DurationMs),
		zap.Int("fetched", summary.Totals.Fetched),
		zap.Int("saved", summary.Totals.Saved),
		zap.Int("skipped", summary.Totals.Skipped),
		zap.Int64("deleted", summary.Cleanup.Deleted))

	c.publish(ctx, summary)
	return summary
}

// collectRegion fetches, normalizes and stores one region.
func (c *Collector) collectRegion(ctx context.Context, region flight.Region) (result RegionResult) {
	result.Region = region

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while collecting region",
				zap.String("region", region.String()),
				zap.Any("panic", r))
			result = RegionResult{Region: region, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if c.feed == nil {
		result.Error = "no feed configured"
		return result
	}

	states, err := opensky.RetryWithBackoffResult(ctx, c.cfg.Retry, func() ([]opensky.StateVector, error) {
		return c.feed.GetStates(ctx, region.Bounds())
	})
	if err != nil {
		c.logger.Warn("Failed to fetch region",
			zap.String("region", region.String()),
			zap.Error(err))
		result.Error = err.Error()
		return result
	}

	positions := flight.NormalizeAll(states, true)
	result.Fetched = len(positions)

	written, err := c.writer.Write(ctx, positions, region, flight.SourceCron)
	result.Saved = written.Saved
	result.Skipped = written.Skipped
	if err != nil {
		result.Error = err.Error()
	}

	c.logger.Info("Region collected",
		zap.String("region", region.String()),
		zap.Int("fetched", result.Fetched),
		zap.Int("saved", result.Saved),
		zap.Int("skipped", result.Skipped))
	return result
}

func (c *Collector) publish(ctx context.Context, summary JobSummary) {
	for _, p := range c.publishers {
		if err := p.PublishSummary(ctx, summary); err != nil {
			c.logger.Warn("Failed to publish job summary", zap.Error(err))
		}
	}
}

// Run repeats the job at the refresh interval from the settings until ctx
// is done. A refresh interval of 0 pauses polling; the settings are checked
// again every minute. Sweeps also run on their own interval.
func (c *Collector) Run(ctx context.Context) {
	next := time.NewTimer(0)
	defer next.Stop()

	var cleanup <-chan time.Time
	if c.cfg.CleanupInterval > 0 {
		ticker := time.NewTicker(c.cfg.CleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
	}

	paused := false
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Collector stopped")
			return

		case <-cleanup:
			c.safely("sweep", func() { c.sweeper.Sweep(ctx) })

		case <-next.C:
			interval := c.settings.Get(ctx).Refresh()
			if interval <= 0 {
				if !paused {
					c.logger.Info("Polling disabled by settings")
					paused = true
				}
				next.Reset(idleRecheck)
				continue
			}
			if paused {
				c.logger.Info("Polling resumed", zap.Duration("interval", interval))
				paused = false
			}

			c.safely("collection job", func() { c.RunOnce(ctx) })
			next.Reset(interval)
		}
	}
}

// safely runs fn and turns a panic into a log line so the loop survives.
func (c *Collector) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in "+what+", will retry on next cycle", zap.Any("panic", r))
		}
	}()
	fn()
}
