package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper deletes records older than the configured retention horizon.
type Sweeper struct {
	ledger   Ledger
	settings *SettingsCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper. A nil settings cache means default retention.
func NewSweeper(ledger Ledger, settings *SettingsCache, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings == nil {
		settings = NewSettingsCache(nil, 0, logger)
	}
	return &Sweeper{
		ledger:   ledger,
		settings: settings,
		logger:   logger.Named("sweeper"),
		now:      time.Now,
	}
}

// Sweep removes every record recorded strictly before now minus the
// retention horizon and returns how many were removed. Failures are logged
// and reported as zero.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	if s.ledger == nil {
		s.logger.Debug("No ledger configured, skipping sweep")
		return 0
	}

	settings := s.settings.Get(ctx)
	cutoff := s.now().UTC().Add(-settings.Retention())

	deleted, err := s.ledger.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Retention sweep failed",
			zap.Time("cutoff", cutoff),
			zap.Error(err))
		return 0
	}

	s.logger.Info("Retention sweep completed",
		zap.Int("retention_days", settings.RetentionDays),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))
	return deleted
}
