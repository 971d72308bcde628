package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/unklstewy/flighttrail/pkg/config"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema_postgres.sql schema_sqlite.sql
var schemaSQL embed.FS

// ErrDisabled is returned by Connect when the configured driver is "none".
var ErrDisabled = errors.New("database disabled")

// timeLayout is how timestamps are stored in SQLite. It is fixed width so
// that string comparison orders the same way as time.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	driver string
	config config.DatabaseConfig
	logger *zap.Logger
}

// Connect establishes a connection to the configured database.
func Connect(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return connectPostgres(cfg, logger)
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		db.config = cfg
		return db, nil
	case config.DriverNone:
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func connectPostgres(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     sqlDB,
		driver: config.DriverPostgres,
		config: cfg,
		logger: orNop(logger).Named("db"),
	}, nil
}

// OpenSQLite opens (or creates) an SQLite ledger. Use ":memory:" for a
// private in-memory database.
func OpenSQLite(path string, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time. A single long-lived
	// connection also keeps ":memory:" databases alive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &DB{
		DB:     sqlDB,
		driver: config.DriverSQLite,
		config: config.DatabaseConfig{Driver: config.DriverSQLite, Path: path},
		logger: orNop(logger).Named("db"),
	}, nil
}

// Driver returns the name of the SQL driver in use.
func (db *DB) Driver() string {
	return db.driver
}

// InitSchema creates the tables and indexes if they don't exist and seeds
// default settings. It is safe to call on every startup.
func (db *DB) InitSchema(ctx context.Context) error {
	name := "schema_postgres.sql"
	if db.driver == config.DriverSQLite {
		name = "schema_sqlite.sql"
	}

	schemaBytes, err := schemaSQL.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// rebind rewrites ? placeholders into the driver's native form.
func (db *DB) rebind(query string) string {
	if db.driver != config.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// timeArg converts a time into the driver's storage form.
func (db *DB) timeArg(t time.Time) any {
	if db.driver == config.DriverSQLite {
		return t.UTC().Format(timeLayout)
	}
	return t.UTC()
}

// Stats summarizes the position ledger.
type Stats struct {
	PositionRecords int64            `json:"position_records"`
	Aircraft        int64            `json:"aircraft"`
	ByRegion        map[string]int64 `json:"by_region"`
	BySource        map[string]int64 `json:"by_source"`
	Oldest          *time.Time       `json:"oldest,omitempty"`
	Newest          *time.Time       `json:"newest,omitempty"`
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByRegion: make(map[string]int64),
		BySource: make(map[string]int64),
	}

	var oldest, newest nullTime
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT icao24), MIN(recorded_at), MAX(recorded_at)
		 FROM flight_positions`,
	).Scan(&stats.PositionRecords, &stats.Aircraft, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to count positions: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = &oldest.Time
	}
	if newest.Valid {
		stats.Newest = &newest.Time
	}

	if err := db.countBy(ctx, "region", stats.ByRegion); err != nil {
		return nil, err
	}
	if err := db.countBy(ctx, "source", stats.BySource); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills counts with per-value row counts of a tag column.
func (db *DB) countBy(ctx context.Context, column string, counts map[string]int64) error {
	rows, err := db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM flight_positions GROUP BY `+column,
	)
	if err != nil {
		return fmt.Errorf("failed to count positions by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts[key] = n
	}
	return rows.Err()
}

// nullTime scans timestamps from either driver: lib/pq returns time.Time,
// SQLite returns the stored text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (n *nullTime) parse(s string) error {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("failed to parse timestamp %q: %w", s, err)
		}
	}
	n.Time, n.Valid = t.UTC(), true
	return nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
