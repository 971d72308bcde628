package flight

import (
	"errors"
	"fmt"
	"time"

	"github.com/unklstewy/flighttrail/pkg/coordinates"
)

// Source tags who wrote a record.
type Source string

const (
	// SourceCron marks writes from the background collector
	SourceCron Source = "cron"

	// SourceClient marks writes triggered by interactive clients
	SourceClient Source = "client"
)

// ErrUnknownSource is returned when a source name is not recognized.
var ErrUnknownSource = errors.New("unknown source")

// ParseSource resolves a source tag.
func ParseSource(name string) (Source, error) {
	switch s := Source(name); s {
	case SourceCron, SourceClient:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

// Record is a Position as stored in the ledger.
// Records are never updated; RecordedAt is the write time, not feed time.
type Record struct {
	ID string `json:"id"`
	Position
	Region     Region    `json:"region"`
	Source     Source    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Deduplication thresholds. A position is stored when the aircraft moved at
// least DedupDistanceKm or DedupInterval passed since its last record.
const (
	DedupDistanceKm = 1.0
	DedupInterval   = 5 * time.Minute
)

// ShouldStore decides whether candidate is worth persisting given the
// aircraft's most recent record (nil when it has none).
func ShouldStore(candidate Position, last *Record, now time.Time) bool {
	if last == nil {
		return true
	}
	if coordinates.DistanceKm(last.Geographic(), candidate.Geographic()) >= DedupDistanceKm {
		return true
	}
	return now.Sub(last.RecordedAt) >= DedupInterval
}
