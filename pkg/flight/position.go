// Package flight holds the canonical flight-history model: normalized
// positions, stored records, regions, settings and reconstructed trajectories.
//
// Everything here is pure. Storage and transport live in internal/db,
// internal/history and internal/api.
package flight

import (
	"strings"

	"github.com/unklstewy/flighttrail/pkg/coordinates"
	"github.com/unklstewy/flighttrail/pkg/opensky"
)

// Position is an aircraft position in canonical form.
// A Position always has coordinates; snapshots without them never become one.
type Position struct {
	// ICAO24 is the lower-case hex transponder address
	ICAO24 string `json:"icao24"`

	// Callsign is trimmed; it falls back to ICAO24 when the feed sent none
	Callsign string `json:"callsign"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	// Altitude in meters (barometric, else geometric, else 0)
	Altitude float64 `json:"altitude"`

	// Velocity is ground speed in m/s
	Velocity float64 `json:"velocity"`

	// Heading is the true track in degrees [0, 360)
	Heading float64 `json:"heading"`

	// VerticalRate in m/s, positive when climbing
	VerticalRate float64 `json:"vertical_rate"`

	OriginCountry string `json:"origin_country"`
	OnGround      bool   `json:"on_ground"`
}

// Geographic returns the position's coordinates.
func (p Position) Geographic() coordinates.Geographic {
	return coordinates.Geographic{Latitude: p.Lat, Longitude: p.Lng}
}

// Normalize converts a feed state vector into a Position.
// It returns false when latitude or longitude is missing.
func Normalize(sv opensky.StateVector) (Position, bool) {
	if sv.Latitude == nil || sv.Longitude == nil {
		return Position{}, false
	}

	icao := strings.ToLower(strings.TrimSpace(sv.ICAO24))

	callsign := ""
	if sv.Callsign != nil {
		callsign = strings.TrimSpace(*sv.Callsign)
	}
	if callsign == "" {
		callsign = icao
	}

	return Position{
		ICAO24:        icao,
		Callsign:      callsign,
		Lat:           *sv.Latitude,
		Lng:           *sv.Longitude,
		Altitude:      firstOf(sv.BaroAltitude, sv.GeoAltitude),
		Velocity:      firstOf(sv.Velocity),
		Heading:       coordinates.NormalizeAzimuth(firstOf(sv.TrueTrack)),
		VerticalRate:  firstOf(sv.VerticalRate),
		OriginCountry: sv.OriginCountry,
		OnGround:      sv.OnGround,
	}, true
}

// NormalizeAll normalizes a batch, dropping snapshots without a position.
// When airborneOnly is set, surface reports are dropped as well.
func NormalizeAll(states []opensky.StateVector, airborneOnly bool) []Position {
	positions := make([]Position, 0, len(states))
	for _, sv := range states {
		p, ok := Normalize(sv)
		if !ok || (airborneOnly && p.OnGround) {
			continue
		}
		positions = append(positions, p)
	}
	return positions
}

// firstOf returns the first non-nil value, or 0.
func firstOf(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
