package history

import (
	"context"
	"testing"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
	"go.uber.org/zap/zaptest"
)

// TestSweep tests retention deletes with a one day horizon.
func TestSweep(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	horizon := now.Add(-24 * time.Hour)

	ledger := newFakeLedger(
		record("aaa111", 40, -74, horizon.Add(-48*time.Hour)),
		record("aaa111", 40, -74, horizon.Add(-time.Second)),
		record("bbb222", 41, -75, horizon.Add(time.Second)),
		record("bbb222", 41, -75, now),
	)
	settings := NewSettingsCache(newFakeSettings(map[string]string{
		flight.SettingRetentionDays: "1",
	}), time.Minute, zaptest.NewLogger(t))

	s := NewSweeper(ledger, settings, zaptest.NewLogger(t))
	s.now = fixedClock(now)

	if deleted := s.Sweep(context.Background()); deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}
	if deleted := s.Sweep(context.Background()); deleted != 0 {
		t.Errorf("Expected second sweep to delete 0, got %d", deleted)
	}

	for _, r := range ledger.records {
		if r.RecordedAt.Before(horizon) {
			t.Errorf("Record at %v survived the sweep", r.RecordedAt)
		}
	}
	if ledger.count() != 2 {
		t.Errorf("Expected 2 records left, got %d", ledger.count())
	}
}

// TestSweepDefaults tests the default horizon and degraded ledgers.
func TestSweepDefaults(t *testing.T) {
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	t.Run("Default retention", func(t *testing.T) {
		ledger := newFakeLedger(
			record("aaa111", 40, -74, now.AddDate(0, 0, -15)),
			record("aaa111", 40, -74, now.AddDate(0, 0, -13)),
		)
		s := NewSweeper(ledger, nil, zaptest.NewLogger(t))
		s.now = fixedClock(now)

		if deleted := s.Sweep(context.Background()); deleted != 1 {
			t.Errorf("Expected 1 deleted, got %d", deleted)
		}
	})

	t.Run("No ledger", func(t *testing.T) {
		s := NewSweeper(nil, nil, zaptest.NewLogger(t))
		if deleted := s.Sweep(context.Background()); deleted != 0 {
			t.Errorf("Expected 0, got %d", deleted)
		}
	})

	t.Run("Ledger error", func(t *testing.T) {
		ledger := newFakeLedger(record("aaa111", 40, -74, now.AddDate(-1, 0, 0)))
		ledger.deleteErr = errLedgerDown
		s := NewSweeper(ledger, nil, zaptest.NewLogger(t))

		if deleted := s.Sweep(context.Background()); deleted != 0 {
			t.Errorf("Expected 0, got %d", deleted)
		}
	})
}
