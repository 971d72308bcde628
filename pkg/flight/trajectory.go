package flight

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf16"
)

// StaleAfter is how old the last point of a trajectory may be before
// Extrapolate refuses to estimate a current position.
const StaleAfter = 600 * time.Second

// Point is one vertex of a trajectory.
type Point struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Trajectory is the ordered path of one aircraft within a query window.
// It always has at least two points.
type Trajectory struct {
	ICAO24   string  `json:"icao24"`
	Callsign string  `json:"callsign"`
	Points   []Point `json:"points"`
	Start    Point   `json:"start"`
	End      Point   `json:"end"`
	Color    string  `json:"color"`
}

// BuildTrajectories groups records by aircraft and builds one trajectory per
// aircraft with at least two records. Input order does not matter; output is
// sorted by ICAO24.
func BuildTrajectories(records []Record) []Trajectory {
	groups := make(map[string][]Record)
	for _, r := range records {
		groups[r.ICAO24] = append(groups[r.ICAO24], r)
	}

	trajectories := make([]Trajectory, 0, len(groups))
	for _, group := range groups {
		if t, ok := BuildTrajectory(group); ok {
			trajectories = append(trajectories, t)
		}
	}

	slices.SortFunc(trajectories, func(a, b Trajectory) int {
		return strings.Compare(a.ICAO24, b.ICAO24)
	})
	return trajectories
}

// BuildTrajectory builds the trajectory of a single aircraft. All records
// must share one ICAO24. It returns false when fewer than two records remain.
// The input slice is not modified.
func BuildTrajectory(records []Record) (Trajectory, bool) {
	if len(records) < 2 {
		return Trajectory{}, false
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return a.RecordedAt.Compare(b.RecordedAt)
	})

	points := make([]Point, len(sorted))
	for i, r := range sorted {
		points[i] = Point{Lat: r.Lat, Lng: r.Lng, Timestamp: r.RecordedAt}
	}

	icao := sorted[0].ICAO24
	return Trajectory{
		ICAO24:   icao,
		Callsign: sorted[0].Callsign,
		Points:   points,
		Start:    points[0],
		End:      points[len(points)-1],
		Color:    TrajectoryColor(icao),
	}, true
}

// TrajectoryColor derives a stable display color from an ICAO24 address.
//
// The hue comes from the classic "hash * 31 + c" string hash evaluated with
// the same int32 wrapping as browser clients, so server and client agree.
func TrajectoryColor(icao24 string) string {
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", colorHue(icao24))
}

func colorHue(s string) int {
	// hash = c + ((hash << 5) - hash), where only the shift truncates to int32
	hash := 0.0
	for _, c := range utf16.Encode([]rune(s)) {
		shifted := toInt32(hash) << 5
		hash = float64(c) + (float64(shifted) - hash)
	}
	return int(math.Mod(math.Abs(hash), 360))
}

func toInt32(f float64) int32 {
	return int32(uint32(int64(f)))
}

// Extrapolate estimates where the aircraft is at the given time.
// It returns false when the trajectory is empty or its last point is more
// than StaleAfter older than at; otherwise the last point is returned as is.
func Extrapolate(t Trajectory, at time.Time) (Point, bool) {
	if len(t.Points) == 0 {
		return Point{}, false
	}
	last := t.Points[len(t.Points)-1]
	if at.Sub(last.Timestamp) > StaleAfter {
		return Point{}, false
	}
	return last, true
}
