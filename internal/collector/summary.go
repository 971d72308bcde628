package collector

import (
	"context"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
)

// RegionResult reports one region of a collection job.
type RegionResult struct {
	Region  flight.Region `json:"region"`
	Fetched int           `json:"fetched"`
	Saved   int           `json:"saved"`
	Skipped int           `json:"skipped"`
	Error   string        `json:"error,omitempty"`
}

// Totals sums the region results.
type Totals struct {
	Fetched int `json:"fetched"`
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// CleanupResult reports the retention sweep that ends every job.
type CleanupResult struct {
	Deleted int64 `json:"deleted"`
}

// RateLimitSummary is the feed quota as last seen by the job.
type RateLimitSummary struct {
	Remaining     *int `json:"remaining"`
	Authenticated bool `json:"authenticated"`
}

// JobSummary is the operational report of one collection job.
type JobSummary struct {
	// Success is false only when the job was cancelled before it finished.
	// Region failures are reported per region.
	Success    bool             `json:"success"`
	DurationMs int64            `json:"duration_ms"`
	Timestamp  time.Time        `json:"timestamp"`
	Regions    []RegionResult   `json:"regions"`
	Totals     Totals           `json:"totals"`
	Cleanup    CleanupResult    `json:"cleanup"`
	RateLimit  RateLimitSummary `json:"rateLimit"`
}

func (s *JobSummary) addRegion(r RegionResult) {
	s.Regions = append(s.Regions, r)
	s.Totals.Fetched += r.Fetched
	s.Totals.Saved += r.Saved
	s.Totals.Skipped += r.Skipped
}

// Publisher receives every finished job summary.
type Publisher interface {
	PublishSummary(ctx context.Context, summary JobSummary) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, summary JobSummary) error

// PublishSummary calls f.
func (f PublisherFunc) PublishSummary(ctx context.Context, summary JobSummary) error {
	return f(ctx, summary)
}
