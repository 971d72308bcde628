package opensky

import (
	"encoding/json"
	"testing"
)

// TestStateVectorUnmarshal tests decoding of the positional array form.
func TestStateVectorUnmarshal(t *testing.T) {
	t.Run("Full row", func(t *testing.T) {
		raw := `["a1b2c3","UAL123  ","United States",1700000000,1700000001,-87.9,41.9,10668.0,false,230.5,93.2,-1.5,[1,2],10972.8,"1200",false,0,4]`

		var sv StateVector
		if err := json.Unmarshal([]byte(raw), &sv); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}

		if sv.ICAO24 != "a1b2c3" {
			t.Errorf("Expected icao24 a1b2c3, got %s", sv.ICAO24)
		}
		if sv.Callsign == nil || *sv.Callsign != "UAL123  " {
			t.Errorf("Expected raw callsign, got %v", sv.Callsign)
		}
		if sv.OriginCountry != "United States" {
			t.Errorf("Expected origin country, got %s", sv.OriginCountry)
		}
		if sv.TimePosition == nil || *sv.TimePosition != 1700000000 {
			t.Errorf("Expected time position, got %v", sv.TimePosition)
		}
		if sv.LastContact != 1700000001 {
			t.Errorf("Expected last contact 1700000001, got %d", sv.LastContact)
		}
		if sv.Longitude == nil || *sv.Longitude != -87.9 {
			t.Errorf("Expected longitude -87.9, got %v", sv.Longitude)
		}
		if sv.Latitude == nil || *sv.Latitude != 41.9 {
			t.Errorf("Expected latitude 41.9, got %v", sv.Latitude)
		}
		if sv.BaroAltitude == nil || *sv.BaroAltitude != 10668.0 {
			t.Errorf("Expected baro altitude, got %v", sv.BaroAltitude)
		}
		if sv.VerticalRate == nil || *sv.VerticalRate != -1.5 {
			t.Errorf("Expected vertical rate -1.5, got %v", sv.VerticalRate)
		}
		if len(sv.Sensors) != 2 {
			t.Errorf("Expected 2 sensors, got %v", sv.Sensors)
		}
		if sv.GeoAltitude == nil || *sv.GeoAltitude != 10972.8 {
			t.Errorf("Expected geo altitude, got %v", sv.GeoAltitude)
		}
		if sv.Squawk == nil || *sv.Squawk != "1200" {
			t.Errorf("Expected squawk 1200, got %v", sv.Squawk)
		}
		if sv.Category == nil || *sv.Category != 4 {
			t.Errorf("Expected category 4, got %v", sv.Category)
		}
	})

	t.Run("Nulls stay nil", func(t *testing.T) {
		raw := `["abc123",null,"Germany",null,1700000001,null,null,null,true,null,null,null,null,null,null,false,0]`

		var sv StateVector
		if err := json.Unmarshal([]byte(raw), &sv); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}

		if sv.Callsign != nil || sv.Latitude != nil || sv.Longitude != nil {
			t.Error("Expected null optional fields to be nil")
		}
		if sv.BaroAltitude != nil || sv.GeoAltitude != nil || sv.Velocity != nil {
			t.Error("Expected null numeric fields to be nil")
		}
		if !sv.OnGround {
			t.Error("Expected on_ground true")
		}
		if sv.Category != nil {
			t.Error("Expected missing category to be nil")
		}
	})

	tests := []struct {
		name string
		raw  string
	}{
		{"Not an array", `{"icao24":"abc"}`},
		{"Too short", `["abc123","X","Y"]`},
		{"Wrong type", `["abc123","X","Y",null,"soon",null,null,null,false,null,null,null,null,null,null,false,0]`},
		{"Empty address", `["",null,"Y",null,1,null,null,null,false,null,null,null,null,null,null,false,0]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sv StateVector
			if err := json.Unmarshal([]byte(tt.raw), &sv); err == nil {
				t.Errorf("Expected error for %s", tt.raw)
			}
		})
	}
}

// TestBoundingBoxContains tests edge-inclusive containment.
func TestBoundingBoxContains(t *testing.T) {
	box := BoundingBox{LatMin: 35, LatMax: 72, LonMin: -25, LonMax: 45}

	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{50, 10, true},
		{35, -25, true},
		{72, 45, true},
		{34.9, 10, false},
		{50, 45.1, false},
	}
	for _, tt := range tests {
		if got := box.Contains(tt.lat, tt.lon); got != tt.want {
			t.Errorf("Contains(%f, %f) = %v, want %v", tt.lat, tt.lon, got, tt.want)
		}
	}
}
