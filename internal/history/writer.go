package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/unklstewy/flighttrail/pkg/flight"
	"go.uber.org/zap"
)

// WriteSummary counts the outcome of one Write call.
type WriteSummary struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// WriteResult is delivered by WriteAsync once the write has finished.
type WriteResult struct {
	WriteSummary
	Err error `json:"-"`
}

// Writer persists positions that moved far enough or aged long enough since
// the aircraft's last stored record.
type Writer struct {
	ledger Ledger
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewWriter creates a writer. A nil ledger makes every write a no-op that
// counts all positions as skipped.
func NewWriter(ledger Ledger, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		ledger: ledger,
		logger: logger.Named("writer"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Write evaluates each position in input order against the ledger and
// stores the ones that pass flight.ShouldStore as a single batch.
//
// A failed lookup skips only that position. If ctx is cancelled before all
// lookups finish, nothing is stored and every position counts as skipped.
// A failed batch insert also counts every position as skipped; the error is
// returned for reporting and leaves the ledger unchanged.
func (w *Writer) Write(ctx context.Context, positions []flight.Position, region flight.Region, source flight.Source) (WriteSummary, error) {
	allSkipped := WriteSummary{Skipped: len(positions)}
	if w.ledger == nil || len(positions) == 0 {
		return allSkipped, nil
	}
	if !region.IsLedgerRegion() {
		return allSkipped, fmt.Errorf("%w: %q cannot be stored", flight.ErrUnknownRegion, region)
	}
	if _, err := flight.ParseSource(string(source)); err != nil {
		return allSkipped, err
	}

	now := w.now().UTC()
	records := make([]flight.Record, 0, len(positions))
	lookupFailures := 0

	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			w.logger.Warn("Write cancelled before all lookups finished",
				zap.String("region", region.String()),
				zap.Int("positions", len(positions)),
				zap.Error(err))
			return allSkipped, fmt.Errorf("write cancelled: %w", err)
		}

		last, err := w.ledger.LatestPosition(ctx, pos.ICAO24)
		if err != nil {
			lookupFailures++
			w.logger.Debug("Failed to look up last position",
				zap.String("icao24", pos.ICAO24),
				zap.Error(err))
			continue
		}

		if !flight.ShouldStore(pos, last, now) {
			continue
		}

		records = append(records, flight.Record{
			ID:         w.newID(),
			Position:   pos,
			Region:     region,
			Source:     source,
			RecordedAt: now,
		})
	}

	if lookupFailures > 0 {
		w.logger.Warn("Some position lookups failed",
			zap.String("region", region.String()),
			zap.Int("failed", lookupFailures))
	}

	if len(records) == 0 {
		return allSkipped, nil
	}

	if err := w.ledger.InsertPositions(ctx, records); err != nil {
		w.logger.Error("Failed to store positions",
			zap.String("region", region.String()),
			zap.String("source", string(source)),
			zap.Int("records", len(records)),
			zap.Error(err))
		return allSkipped, fmt.Errorf("failed to store positions: %w", err)
	}

	summary := WriteSummary{Saved: len(records), Skipped: len(positions) - len(records)}
	w.logger.Debug("Positions written",
		zap.String("region", region.String()),
		zap.String("source", string(source)),
		zap.Int("saved", summary.Saved),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// WriteAsync runs Write in the background and returns a channel that
// receives exactly one result. The channel is buffered, so callers that do
// not care about the outcome may drop it.
//
// The write is detached from ctx cancellation so it outlives the request
// that triggered it; ctx values are kept.
func (w *Writer) WriteAsync(ctx context.Context, positions []flight.Position, region flight.Region, source flight.Source) <-chan WriteResult {
	result := make(chan WriteResult, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(result)
		summary, err := w.Write(ctx, positions, region, source)
		result <- WriteResult{WriteSummary: summary, Err: err}
	}()

	return result
}
