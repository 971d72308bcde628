package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
	"go.uber.org/zap/zaptest"
)

func newTestWriter(t *testing.T, ledger Ledger, now time.Time) *Writer {
	t.Helper()
	w := NewWriter(ledger, zaptest.NewLogger(t))
	w.now = fixedClock(now)
	n := 0
	w.newID = func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}
	return w
}

// TestWriterDedupRule tests the distance and elapsed time thresholds.
func TestWriterDedupRule(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		lat     float64
		elapsed time.Duration
		saved   int
	}{
		{"Near and recent is skipped", 40.0005, time.Minute, 0},
		{"Moved 2 km is stored", 40.02, time.Minute, 1},
		{"Near but 6 minutes old is stored", 40.0005, 6 * time.Minute, 1},
		{"Exactly 5 minutes is stored", 40.0005, 5 * time.Minute, 1},
		{"Same spot 4m59s is skipped", 40.0, 4*time.Minute + 59*time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newFakeLedger(record("a1b2c3", 40.0, -74.0, base))
			w := newTestWriter(t, ledger, base.Add(tt.elapsed))

			summary, err := w.Write(context.Background(),
				[]flight.Position{position("a1b2c3", tt.lat, -74.0)},
				flight.RegionUSA, flight.SourceCron)
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if summary.Saved != tt.saved || summary.Skipped != 1-tt.saved {
				t.Errorf("Summary = %+v, want saved %d", summary, tt.saved)
			}
			if ledger.count() != 1+tt.saved {
				t.Errorf("Ledger has %d records, want %d", ledger.count(), 1+tt.saved)
			}
		})
	}
}

// TestWriterFirstSighting tests that unknown aircraft are always stored.
func TestWriterFirstSighting(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := newFakeLedger()
	w := newTestWriter(t, ledger, now)

	positions := []flight.Position{
		position("aaa111", 40.0, -74.0),
		position("bbb222", 41.0, -75.0),
	}
	summary, err := w.Write(context.Background(), positions, flight.RegionEurope, flight.SourceClient)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if summary != (WriteSummary{Saved: 2}) {
		t.Errorf("Summary = %+v, want 2 saved", summary)
	}

	for i, rec := range ledger.records {
		if rec.ID != fmt.Sprintf("rec-%d", i+1) {
			t.Errorf("Record %d id = %s", i, rec.ID)
		}
		if rec.Region != flight.RegionEurope || rec.Source != flight.SourceClient {
			t.Errorf("Record %d tags = %s/%s", i, rec.Region, rec.Source)
		}
		if !rec.RecordedAt.Equal(now) {
			t.Errorf("Record %d recorded_at = %v, want %v", i, rec.RecordedAt, now)
		}
		if rec.ICAO24 != positions[i].ICAO24 {
			t.Errorf("Record %d icao = %s, want input order", i, rec.ICAO24)
		}
	}
}

// TestWriterSiblingsNotCompared tests that positions in one call are judged
// only against the ledger, not against each other.
func TestWriterSiblingsNotCompared(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := newFakeLedger()
	w := newTestWriter(t, ledger, now)

	positions := []flight.Position{
		position("aaa111", 40.0, -74.0),
		position("aaa111", 40.0, -74.0),
	}
	summary, err := w.Write(context.Background(), positions, flight.RegionUSA, flight.SourceCron)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if summary.Saved != 2 {
		t.Errorf("Expected both positions stored, got %+v", summary)
	}
	if ledger.inserts != 1 {
		t.Errorf("Expected a single batch insert, got %d", ledger.inserts)
	}
}

// TestWriterDegradedModes tests nil ledgers and ledger failures.
func TestWriterDegradedModes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	positions := []flight.Position{
		position("aaa111", 40.0, -74.0),
		position("bbb222", 41.0, -75.0),
		position("ccc333", 42.0, -76.0),
	}

	t.Run("No ledger", func(t *testing.T) {
		w := newTestWriter(t, nil, now)
		summary, err := w.Write(context.Background(), positions, flight.RegionUSA, flight.SourceCron)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if summary != (WriteSummary{Skipped: 3}) {
			t.Errorf("Summary = %+v, want 3 skipped", summary)
		}
	})

	t.Run("Batch insert fails", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.insertErr = errLedgerDown
		w := newTestWriter(t, ledger, now)

		summary, err := w.Write(context.Background(), positions, flight.RegionUSA, flight.SourceCron)
		if !errors.Is(err, errLedgerDown) {
			t.Errorf("Expected insert error, got %v", err)
		}
		if summary != (WriteSummary{Skipped: 3}) {
			t.Errorf("Summary = %+v, want 3 skipped", summary)
		}
	})

	t.Run("One lookup fails", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.lookupErr["bbb222"] = errLedgerDown
		w := newTestWriter(t, ledger, now)

		summary, err := w.Write(context.Background(), positions, flight.RegionUSA, flight.SourceCron)
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if summary != (WriteSummary{Saved: 2, Skipped: 1}) {
			t.Errorf("Summary = %+v, want 2 saved 1 skipped", summary)
		}
		if ledger.lookups != 3 {
			t.Errorf("Expected all 3 lookups, got %d", ledger.lookups)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ledger := newFakeLedger()
		w := newTestWriter(t, ledger, now)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		summary, err := w.Write(ctx, positions, flight.RegionUSA, flight.SourceCron)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if summary != (WriteSummary{Skipped: 3}) {
			t.Errorf("Summary = %+v, want 3 skipped", summary)
		}
		if ledger.inserts != 0 {
			t.Errorf("Expected no insert, got %d", ledger.inserts)
		}
	})

	t.Run("World is not a ledger region", func(t *testing.T) {
		ledger := newFakeLedger()
		w := newTestWriter(t, ledger, now)

		summary, err := w.Write(context.Background(), positions, flight.RegionWorld, flight.SourceCron)
		if !errors.Is(err, flight.ErrUnknownRegion) {
			t.Errorf("Expected ErrUnknownRegion, got %v", err)
		}
		if summary.Saved != 0 || ledger.lookups != 0 {
			t.Errorf("Expected nothing written, got %+v", summary)
		}
	})

	t.Run("Unknown source", func(t *testing.T) {
		w := newTestWriter(t, newFakeLedger(), now)
		_, err := w.Write(context.Background(), positions, flight.RegionUSA, flight.Source("batch"))
		if !errors.Is(err, flight.ErrUnknownSource) {
			t.Errorf("Expected ErrUnknownSource, got %v", err)
		}
	})

	t.Run("Empty input", func(t *testing.T) {
		ledger := newFakeLedger()
		w := newTestWriter(t, ledger, now)
		summary, err := w.Write(context.Background(), nil, flight.RegionUSA, flight.SourceCron)
		if err != nil || summary != (WriteSummary{}) {
			t.Errorf("Expected zero summary, got %+v (%v)", summary, err)
		}
		if ledger.inserts != 0 {
			t.Errorf("Expected no insert, got %d", ledger.inserts)
		}
	})
}

// TestWriteAsync tests the non-blocking dispatch.
func TestWriteAsync(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Result is delivered", func(t *testing.T) {
		ledger := newFakeLedger()
		w := newTestWriter(t, ledger, now)

		ctx, cancel := context.WithCancel(context.Background())
		results := w.WriteAsync(ctx, []flight.Position{position("aaa111", 40, -74)}, flight.RegionUSA, flight.SourceClient)
		// Cancelling the originating request does not abort the write
		cancel()

		select {
		case res := <-results:
			if res.Err != nil {
				t.Fatalf("Unexpected error: %v", res.Err)
			}
			if res.Saved != 1 {
				t.Errorf("Expected 1 saved, got %+v", res.WriteSummary)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for result")
		}

		if _, ok := <-results; ok {
			t.Error("Expected channel to be closed after the result")
		}
	})

	t.Run("Failure is observable", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.insertErr = errLedgerDown
		w := newTestWriter(t, ledger, now)

		res := <-w.WriteAsync(context.Background(), []flight.Position{position("aaa111", 40, -74)}, flight.RegionUSA, flight.SourceClient)
		if !errors.Is(res.Err, errLedgerDown) {
			t.Errorf("Expected insert error, got %v", res.Err)
		}
		if res.Skipped != 1 {
			t.Errorf("Expected 1 skipped, got %+v", res.WriteSummary)
		}
	})
}
