// Package history decides which positions enter the ledger, expires old
// records, and rebuilds per-aircraft trajectories from what is stored.
//
// All components accept a nil Ledger and degrade to zero counts and empty
// results, which is how the service runs without a database.
package history

import (
	"context"
	"math"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
)

// Ledger is the persistent store of position records.
type Ledger interface {
	// InsertPositions stores all records or none.
	InsertPositions(ctx context.Context, records []flight.Record) error

	// LatestPosition returns the newest record of an aircraft in any region
	// and from any source, or nil when there is none.
	LatestPosition(ctx context.Context, icao24 string) (*flight.Record, error)

	// PositionsByAircraft returns one aircraft's records recorded at or after since.
	PositionsByAircraft(ctx context.Context, icao24 string, since time.Time) ([]flight.Record, error)

	// PositionsSince returns records recorded at or after since, optionally
	// for one region only. Order is unspecified.
	PositionsSince(ctx context.Context, region *flight.Region, since time.Time) ([]flight.Record, error)

	// DeleteOlderThan removes records recorded strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingsStore persists deployment settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (flight.Settings, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

// MaxHoursBack is the longest look-back window a query may ask for.
const MaxHoursBack = 24 * 365

// ValidHours reports whether hours is a usable look-back window, that is
// within (0, MaxHoursBack].
func ValidHours(hours float64) bool {
	return !math.IsNaN(hours) && hours > 0 && hours <= MaxHoursBack
}

// windowStart returns the start of a query window reaching hoursBack hours
// into the past from now. Windows outside (0, MaxHoursBack] are clamped.
func windowStart(now time.Time, hoursBack float64) time.Time {
	switch {
	case math.IsNaN(hoursBack) || hoursBack <= 0:
		return now
	case hoursBack > MaxHoursBack:
		hoursBack = MaxHoursBack
	}
	return now.Add(-time.Duration(hoursBack * float64(time.Hour)))
}
