package history

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
	"go.uber.org/zap"
)

// Reconstructor rebuilds trajectories from the ledger.
type Reconstructor struct {
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

// NewReconstructor creates a reconstructor over ledger, which may be nil.
func NewReconstructor(ledger Ledger, logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{
		ledger: ledger,
		logger: logger.Named("reconstructor"),
		now:    time.Now,
	}
}

// Reconstruct returns the trajectories of all aircraft with at least two
// records in the last hoursBack hours, optionally within one region.
// The result is never nil and is sorted by ICAO24.
func (r *Reconstructor) Reconstruct(ctx context.Context, region *flight.Region, hoursBack float64) []flight.Trajectory {
	if r.ledger == nil {
		return []flight.Trajectory{}
	}

	since := windowStart(r.now().UTC(), hoursBack)
	records, err := r.ledger.PositionsSince(ctx, region, since)
	if err != nil {
		fields := []zap.Field{zap.Time("since", since), zap.Error(err)}
		if region != nil {
			fields = append(fields, zap.String("region", region.String()))
		}
		r.logger.Error("Failed to query positions", fields...)
		return []flight.Trajectory{}
	}

	return flight.BuildTrajectories(records)
}

// ReconstructOne returns one aircraft's trajectory over the last hoursBack
// hours. It returns false when fewer than two records are available.
func (r *Reconstructor) ReconstructOne(ctx context.Context, icao24 string, hoursBack float64) (flight.Trajectory, bool) {
	records := r.History(ctx, icao24, hoursBack)
	return flight.BuildTrajectory(records)
}

// History returns the raw records of one aircraft over the last hoursBack
// hours, oldest first.
func (r *Reconstructor) History(ctx context.Context, icao24 string, hoursBack float64) []flight.Record {
	if r.ledger == nil {
		return []flight.Record{}
	}

	icao24 = strings.ToLower(strings.TrimSpace(icao24))
	since := windowStart(r.now().UTC(), hoursBack)

	records, err := r.ledger.PositionsByAircraft(ctx, icao24, since)
	if err != nil {
		r.logger.Error("Failed to query aircraft positions",
			zap.String("icao24", icao24),
			zap.Error(err))
		return []flight.Record{}
	}
	if records == nil {
		return []flight.Record{}
	}

	// The ledger may return rows in any order
	slices.SortStableFunc(records, func(a, b flight.Record) int {
		return a.RecordedAt.Compare(b.RecordedAt)
	})
	return records
}
