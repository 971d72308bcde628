// Package opensky is a client for the OpenSky Network REST API.
//
// The API reports aircraft state vectors as positional JSON arrays. They are
// decoded exactly once, in StateVector.UnmarshalJSON, so nothing downstream
// of this package ever indexes into a raw array.
package opensky

import (
	"encoding/json"
	"fmt"
)

// DefaultBaseURL is the public OpenSky REST endpoint.
const DefaultBaseURL = "https://opensky-network.org/api"

// DefaultTokenURL is the OpenSky OAuth2 token endpoint used for client credentials.
const DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

// Position sources reported in StateVector.PositionSource.
const (
	PositionSourceADSB    = 0
	PositionSourceASTERIX = 1
	PositionSourceMLAT    = 2
	PositionSourceFLARM   = 3
)

// StateVector is one aircraft state as reported by /states/all.
// Optional fields are nil when the feed reported null.
type StateVector struct {
	// ICAO24 is the 24-bit transponder address as hex (e.g., "a1b2c3")
	ICAO24 string

	// Callsign is the 8 character callsign, usually space padded
	Callsign *string

	// OriginCountry is inferred from the ICAO24 address block
	OriginCountry string

	// TimePosition is the Unix time of the last position report
	TimePosition *int64

	// LastContact is the Unix time of the last message of any kind
	LastContact int64

	// Longitude in decimal degrees (WGS84)
	Longitude *float64

	// Latitude in decimal degrees (WGS84)
	Latitude *float64

	// BaroAltitude is barometric altitude in meters
	BaroAltitude *float64

	// OnGround is true when the position came from a surface report
	OnGround bool

	// Velocity is ground speed in m/s
	Velocity *float64

	// TrueTrack is the track angle in degrees clockwise from north
	TrueTrack *float64

	// VerticalRate in m/s, positive when climbing
	VerticalRate *float64

	// Sensors lists receiver ids that contributed to this state
	Sensors []int

	// GeoAltitude is geometric altitude in meters
	GeoAltitude *float64

	// Squawk is the transponder code
	Squawk *string

	// SPI is the special purpose indicator
	SPI bool

	// PositionSource is one of the PositionSource* constants
	PositionSource int

	// Category is the aircraft category, only present on extended requests
	Category *int
}

// UnmarshalJSON decodes the positional array form used by the API:
//
//	["a1b2c3","UAL123  ","United States",1700000000,1700000001,-87.9,41.9,10668.0,false,230.5,93.2,0.0,null,10972.8,"1200",false,0]
func (s *StateVector) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to decode state vector: %w", err)
	}
	if len(fields) < 17 {
		return fmt.Errorf("state vector has %d fields, expected at least 17", len(fields))
	}

	var sv StateVector
	targets := []any{
		&sv.ICAO24,
		&sv.Callsign,
		&sv.OriginCountry,
		&sv.TimePosition,
		&sv.LastContact,
		&sv.Longitude,
		&sv.Latitude,
		&sv.BaroAltitude,
		&sv.OnGround,
		&sv.Velocity,
		&sv.TrueTrack,
		&sv.VerticalRate,
		&sv.Sensors,
		&sv.GeoAltitude,
		&sv.Squawk,
		&sv.SPI,
		&sv.PositionSource,
		&sv.Category,
	}
	for i, target := range targets {
		if i >= len(fields) {
			break
		}
		// null leaves the zero value in place for non-pointer fields too
		if string(fields[i]) == "null" {
			continue
		}
		if err := json.Unmarshal(fields[i], target); err != nil {
			return fmt.Errorf("failed to decode state vector field %d: %w", i, err)
		}
	}
	if sv.ICAO24 == "" {
		return fmt.Errorf("state vector has no icao24 address")
	}

	*s = sv
	return nil
}

// BoundingBox restricts a states query to a rectangle in decimal degrees.
type BoundingBox struct {
	LatMin float64 `json:"lamin"`
	LatMax float64 `json:"lamax"`
	LonMin float64 `json:"lomin"`
	LonMax float64 `json:"lomax"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// statesResponse is the envelope returned by /states/all.
// States are kept raw so a single malformed row does not fail the batch.
type statesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}
