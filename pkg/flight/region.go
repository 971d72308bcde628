package flight

import (
	"errors"
	"fmt"

	"github.com/unklstewy/flighttrail/pkg/opensky"
)

// Region is a named geographic area. The ledger regions double as partition
// tags on stored records; RegionWorld only scopes live feed queries.
type Region string

const (
	RegionUSA      Region = "usa"
	RegionEurope   Region = "europe"
	RegionEastAsia Region = "eastAsia"

	// RegionWorld is the unbounded feed scope. It is never a ledger tag.
	RegionWorld Region = "world"
)

// ErrUnknownRegion is returned when a region name is not recognized.
var ErrUnknownRegion = errors.New("unknown region")

var regionBounds = map[Region]opensky.BoundingBox{
	RegionUSA:      {LatMin: 24.396308, LatMax: 49.384358, LonMin: -125.0, LonMax: -66.93457},
	RegionEurope:   {LatMin: 35.0, LatMax: 72.0, LonMin: -25.0, LonMax: 45.0},
	RegionEastAsia: {LatMin: 20.0, LatMax: 50.0, LonMin: 100.0, LonMax: 150.0},
}

// LedgerRegions lists the regions that may tag stored records, in display order.
func LedgerRegions() []Region {
	return []Region{RegionUSA, RegionEurope, RegionEastAsia}
}

// IsLedgerRegion reports whether r may tag a stored record.
func (r Region) IsLedgerRegion() bool {
	_, ok := regionBounds[r]
	return ok
}

// Bounds returns the region's bounding box, or nil for RegionWorld.
func (r Region) Bounds() *opensky.BoundingBox {
	box, ok := regionBounds[r]
	if !ok {
		return nil
	}
	return &box
}

func (r Region) String() string {
	return string(r)
}

// ParseRegion resolves a ledger region name.
func ParseRegion(name string) (Region, error) {
	r := Region(name)
	if !r.IsLedgerRegion() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, name)
	}
	return r, nil
}

// ParseFeedRegion resolves a region name for live feed queries, which also
// accept RegionWorld.
func ParseFeedRegion(name string) (Region, error) {
	if Region(name) == RegionWorld {
		return RegionWorld, nil
	}
	return ParseRegion(name)
}
