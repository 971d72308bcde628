package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
)

const positionColumns = `id, icao24, callsign, lat, lng, altitude, velocity, heading,
	vertical_rate, origin_country, on_ground, region, source, recorded_at`

// insertBatchSize keeps multi-row inserts under driver parameter limits
// (14 columns x 500 rows).
const insertBatchSize = 500

// PositionRepository handles the flight position ledger.
type PositionRepository struct {
	db *DB

	// retries is how often a batch insert is retried on connection errors
	retries int
}

// NewPositionRepository creates a new position repository.
func NewPositionRepository(db *DB) *PositionRepository {
	return &PositionRepository{db: db, retries: 2}
}

// InsertPositions stores records in a single transaction. Either every
// record is stored or none is.
func (r *PositionRepository) InsertPositions(ctx context.Context, records []flight.Record) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.WithRetry(ctx, r.retries, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for start := 0; start < len(records); start += insertBatchSize {
			end := min(start+insertBatchSize, len(records))
			query, args := r.buildInsert(records[start:end])
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert positions: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit positions: %w", err)
		}
		return nil
	})
}

func (r *PositionRepository) buildInsert(records []flight.Record) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO flight_positions (` + positionColumns + `) VALUES `)

	args := make([]any, 0, len(records)*14)
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.ID, rec.ICAO24, rec.Callsign, rec.Lat, rec.Lng,
			rec.Altitude, rec.Velocity, rec.Heading, rec.VerticalRate,
			rec.OriginCountry, rec.OnGround,
			string(rec.Region), string(rec.Source), r.db.timeArg(rec.RecordedAt),
		)
	}
	return r.db.rebind(b.String()), args
}

// LatestPosition returns the most recently recorded position of an aircraft
// in any region and from any source. Returns nil if the aircraft has none.
func (r *PositionRepository) LatestPosition(ctx context.Context, icao24 string) (*flight.Record, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+positionColumns+`
		 FROM flight_positions
		 WHERE icao24 = ?
		 ORDER BY recorded_at DESC
		 LIMIT 1`),
		icao24,
	)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest position: %w", err)
	}
	return &rec, nil
}

// PositionsByAircraft returns one aircraft's records recorded at or after
// since, oldest first.
func (r *PositionRepository) PositionsByAircraft(ctx context.Context, icao24 string, since time.Time) ([]flight.Record, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+positionColumns+`
		 FROM flight_positions
		 WHERE icao24 = ? AND recorded_at >= ?
		 ORDER BY recorded_at ASC`),
		icao24, r.db.timeArg(since),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft positions: %w", err)
	}
	return collectRecords(rows)
}

// PositionsSince returns all records recorded at or after since, optionally
// restricted to one region. Rows come back in no particular order.
func (r *PositionRepository) PositionsSince(ctx context.Context, region *flight.Region, since time.Time) ([]flight.Record, error) {
	query := `SELECT ` + positionColumns + ` FROM flight_positions WHERE recorded_at >= ?`
	args := []any{r.db.timeArg(since)}
	if region != nil {
		query += ` AND region = ?`
		args = append(args, string(*region))
	}

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent positions: %w", err)
	}
	return collectRecords(rows)
}

// DeleteOlderThan removes records recorded strictly before cutoff and
// returns how many rows were deleted.
func (r *PositionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`DELETE FROM flight_positions WHERE recorded_at < ?`),
		r.db.timeArg(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old positions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted positions: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (flight.Record, error) {
	var rec flight.Record
	var (
		callsign, country, region, source        sql.NullString
		altitude, velocity, heading, verticalRate sql.NullFloat64
		recordedAt                                nullTime
	)

	err := row.Scan(
		&rec.ID, &rec.ICAO24, &callsign, &rec.Lat, &rec.Lng,
		&altitude, &velocity, &heading, &verticalRate,
		&country, &rec.OnGround, &region, &source, &recordedAt,
	)
	if err != nil {
		return rec, err
	}

	rec.Callsign = callsign.String
	if rec.Callsign == "" {
		rec.Callsign = rec.ICAO24
	}
	rec.Altitude = altitude.Float64
	rec.Velocity = velocity.Float64
	rec.Heading = heading.Float64
	rec.VerticalRate = verticalRate.Float64
	rec.OriginCountry = country.String
	rec.Region = flight.Region(region.String)
	rec.Source = flight.Source(source.String)
	rec.RecordedAt = recordedAt.Time

	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]flight.Record, error) {
	defer rows.Close()

	var records []flight.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	return records, nil
}
