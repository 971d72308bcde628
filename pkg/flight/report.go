package flight

import (
	"errors"
	"fmt"

	"github.com/unklstewy/flighttrail/pkg/opensky"
)

// Report validation errors.
var (
	ErrMissingICAO        = errors.New("missing icao24")
	ErrMissingCoordinates = errors.New("missing coordinates")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Report is a position as reported by an interactive client. Optional
// values are nil when the client left them out.
type Report struct {
	ICAO24        string   `json:"icao24"`
	Callsign      *string  `json:"callsign"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	Altitude      *float64 `json:"altitude"`
	Velocity      *float64 `json:"velocity"`
	Heading       *float64 `json:"heading"`
	VerticalRate  *float64 `json:"vertical_rate"`
	OriginCountry string   `json:"origin_country"`
	OnGround      bool     `json:"on_ground"`
}

// NormalizeReport converts a client report into a Position the same way
// Normalize converts a feed snapshot. Unlike feed data, a report without
// an icao24 or with coordinates outside [-90,90] x [-180,180] is rejected.
func NormalizeReport(r Report) (Position, error) {
	sv := opensky.StateVector{
		ICAO24:        r.ICAO24,
		Callsign:      r.Callsign,
		OriginCountry: r.OriginCountry,
		Latitude:      r.Lat,
		Longitude:     r.Lng,
		BaroAltitude:  r.Altitude,
		OnGround:      r.OnGround,
		Velocity:      r.Velocity,
		TrueTrack:     r.Heading,
		VerticalRate:  r.VerticalRate,
	}

	p, ok := Normalize(sv)
	switch {
	case !ok:
		return Position{}, ErrMissingCoordinates
	case p.ICAO24 == "":
		return Position{}, ErrMissingICAO
	case !ValidCoordinates(p.Lat, p.Lng):
		return Position{}, fmt.Errorf("%w: lat=%g lng=%g", ErrInvalidCoordinates, p.Lat, p.Lng)
	}
	return p, nil
}

// ValidCoordinates reports whether lat and lng are WGS84 degrees.
// NaN and infinities are invalid.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// NormalizeReports normalizes every report, failing on the first invalid one.
func NormalizeReports(reports []Report) ([]Position, error) {
	positions := make([]Position, 0, len(reports))
	for i, r := range reports {
		p, err := NormalizeReport(r)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		positions = append(positions, p)
	}
	return positions, nil
}
