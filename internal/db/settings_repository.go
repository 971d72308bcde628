package db

import (
	"context"
	"fmt"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
)

// SettingsRepository reads and writes the app_settings table.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettings returns the stored settings. Missing or malformed values are
// replaced by defaults.
func (r *SettingsRepository) GetSettings(ctx context.Context) (flight.Settings, error) {
	values, err := r.values(ctx)
	if err != nil {
		return flight.DefaultSettings(), err
	}
	return flight.SettingsFromValues(values), nil
}

func (r *SettingsRepository) values(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return values, nil
}

// UpsertSetting validates and stores one setting.
func (r *SettingsRepository) UpsertSetting(ctx context.Context, key, value string) error {
	if err := flight.ValidateSetting(key, value); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`),
		key, value, r.db.timeArg(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}
