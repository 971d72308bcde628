package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
)

// fakeLedger is an in-memory Ledger that returns rows in insertion order.
type fakeLedger struct {
	mu      sync.Mutex
	records []flight.Record

	insertErr error
	lookupErr map[string]error
	queryErr  error
	deleteErr error

	inserts int
	lookups int
}

func newFakeLedger(records ...flight.Record) *fakeLedger {
	return &fakeLedger{records: records, lookupErr: make(map[string]error)}
}

func (f *fakeLedger) InsertPositions(_ context.Context, records []flight.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeLedger) LatestPosition(_ context.Context, icao24 string) (*flight.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if err := f.lookupErr[icao24]; err != nil {
		return nil, err
	}

	var latest *flight.Record
	for i := range f.records {
		r := f.records[i]
		if r.ICAO24 != icao24 {
			continue
		}
		if latest == nil || r.RecordedAt.After(latest.RecordedAt) {
			latest = &r
		}
	}
	return latest, nil
}

func (f *fakeLedger) PositionsByAircraft(_ context.Context, icao24 string, since time.Time) ([]flight.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var out []flight.Record
	for _, r := range f.records {
		if r.ICAO24 == icao24 && !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLedger) PositionsSince(_ context.Context, region *flight.Region, since time.Time) ([]flight.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var out []flight.Record
	for _, r := range f.records {
		if region != nil && r.Region != *region {
			continue
		}
		if !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLedger) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}

	kept := f.records[:0]
	var deleted int64
	for _, r := range f.records {
		if r.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeSettings is an in-memory SettingsStore.
type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
	err    error
	loads  int
}

func newFakeSettings(values map[string]string) *fakeSettings {
	if values == nil {
		values = make(map[string]string)
	}
	return &fakeSettings{values: values}
}

func (f *fakeSettings) GetSettings(_ context.Context) (flight.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return flight.DefaultSettings(), f.err
	}
	return flight.SettingsFromValues(f.values), nil
}

func (f *fakeSettings) UpsertSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	return nil
}

var errLedgerDown = errors.New("connection refused")

func record(icao string, lat, lng float64, at time.Time) flight.Record {
	return flight.Record{
		ID: icao + "-" + at.Format(time.RFC3339Nano),
		Position: flight.Position{
			ICAO24:   icao,
			Callsign: "CS" + icao,
			Lat:      lat,
			Lng:      lng,
		},
		Region:     flight.RegionUSA,
		Source:     flight.SourceCron,
		RecordedAt: at,
	}
}

func position(icao string, lat, lng float64) flight.Position {
	return flight.Position{ICAO24: icao, Callsign: "CS" + icao, Lat: lat, Lng: lng}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
