package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unklstewy/flighttrail/pkg/flight"
	"go.uber.org/zap"
)

// ErrNoStore is returned when settings are changed without a configured store.
var ErrNoStore = errors.New("no settings store configured")

// SettingsCache serves settings from memory and reloads them from the store
// once they are older than the TTL. It is safe for concurrent use.
type SettingsCache struct {
	store  SettingsStore
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	settings flight.Settings
	loadedAt time.Time
	loaded   bool
}

// NewSettingsCache creates a cache in front of store. With a nil store the
// cache always returns defaults.
func NewSettingsCache(store SettingsStore, ttl time.Duration, logger *zap.Logger) *SettingsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsCache{
		store:    store,
		ttl:      ttl,
		logger:   logger.Named("settings"),
		now:      time.Now,
		settings: flight.DefaultSettings(),
	}
}

// Get returns the current settings. When a reload fails the previously
// loaded values (or defaults) are returned.
func (c *SettingsCache) Get(ctx context.Context) flight.Settings {
	if c.store == nil {
		return flight.DefaultSettings()
	}

	c.mu.RLock()
	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		s := c.settings
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock
	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		return c.settings
	}

	s, err := c.store.GetSettings(ctx)
	if err != nil {
		c.logger.Warn("Failed to load settings, using cached values", zap.Error(err))
		return c.settings
	}

	c.settings = s
	c.loadedAt = c.now()
	c.loaded = true
	return s
}

// Set validates and stores one setting, then drops the cached copy so the
// next Get sees the change.
func (c *SettingsCache) Set(ctx context.Context, key, value string) error {
	if err := flight.ValidateSetting(key, value); err != nil {
		return err
	}
	if c.store == nil {
		return ErrNoStore
	}
	if err := c.store.UpsertSetting(ctx, key, value); err != nil {
		return err
	}

	c.Invalidate()
	c.logger.Info("Setting updated", zap.String("key", key), zap.String("value", value))
	return nil
}

// Invalidate forces the next Get to reload from the store.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
