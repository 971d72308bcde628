package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/flighttrail/internal/collector"
	"github.com/unklstewy/flighttrail/internal/db"
	"github.com/unklstewy/flighttrail/pkg/flight"
)

func TestTable(t *testing.T) {
	out := table([]string{"A", "LONG"}, [][]string{{"wide cell", "x"}, {"b", "y"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "wide cell  x") || !strings.HasPrefix(lines[2], "b          y") {
		t.Errorf("Columns not aligned: %q", out)
	}
}

func TestRenderSummary(t *testing.T) {
	remaining := 3950
	out := renderSummary(collector.JobSummary{
		Success: true,
		Regions: []collector.RegionResult{
			{Region: flight.RegionUSA, Fetched: 10, Saved: 7, Skipped: 3},
			{Region: flight.RegionEurope, Error: "rate limited"},
		},
		Totals:    collector.Totals{Fetched: 10, Saved: 7, Skipped: 3},
		Cleanup:   collector.CleanupResult{Deleted: 12},
		RateLimit: collector.RateLimitSummary{Remaining: &remaining},
	})

	for _, want := range []string{"completed", "usa", "rate limited", "10 fetched, 7 saved, 3 skipped", "12 expired", "3950"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderTrajectory(t *testing.T) {
	now := time.Now()
	traj := flight.Trajectory{
		ICAO24:   "abc123",
		Callsign: "UAL1",
		Points: []flight.Point{
			{Lat: 40, Lng: -74, Timestamp: now.Add(-time.Minute)},
			{Lat: 40.1, Lng: -74.1, Timestamp: now},
		},
	}

	if out := renderTrajectory(traj, nil); !strings.Contains(out, "stale") {
		t.Errorf("Expected stale notice, got:\n%s", out)
	}
	if out := renderTrajectory(traj, &traj.Points[1]); !strings.Contains(out, "40.10000, -74.10000") {
		t.Errorf("Expected current position, got:\n%s", out)
	}
	if out := renderTrajectory(traj, nil); !strings.Contains(out, "Path: ") {
		t.Errorf("Expected path summary, got:\n%s", out)
	}
	if out := renderTrajectories(nil, 6); !strings.Contains(out, "No trajectories") {
		t.Errorf("Expected empty notice, got:\n%s", out)
	}
}

func TestRenderSettingsAndStats(t *testing.T) {
	settings := flight.DefaultSettings()
	settings.RefreshInterval = 0
	if out := renderSettings(settings); !strings.Contains(out, "polling disabled") {
		t.Errorf("Expected paused polling, got:\n%s", out)
	}

	out := renderStats(&db.Stats{
		PositionRecords: 5,
		Aircraft:        2,
		ByRegion:        map[string]int64{"usa": 5},
		BySource:        map[string]int64{"cron": 4, "client": 1},
	})
	for _, want := range []string{"Records:  5", "Aircraft: 2", "eastAsia", "client"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestPathGeometry(t *testing.T) {
	points := []flight.Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}, {Lat: 1, Lng: 1}}

	// One degree of latitude is about 60 nm
	if got := pathLengthNM(points[:2]); got < 59.5 || got > 60.5 {
		t.Errorf("Expected about 60 nm, got %.2f", got)
	}
	if got := lastBearing(points); got < 89 || got > 91 {
		t.Errorf("Expected an eastward bearing, got %.2f", got)
	}
	if got := lastBearing(points[:1]); got != 0 {
		t.Errorf("Expected 0 for a single point, got %.2f", got)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, map[string]int{"deleted": 3}); err != nil {
		t.Fatalf("writeJSON failed: %v", err)
	}
	if buf.String() != "{\n  \"deleted\": 3\n}\n" {
		t.Errorf("Unexpected JSON %q", buf.String())
	}
}
