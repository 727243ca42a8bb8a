package store

import (
	"context"
	"log/slog"
	"time"
)

// CleanupInterval is how often expired refresh tokens are swept.
const CleanupInterval = 60 * time.Second

// CleanupLoop periodically deletes expired refresh-token rows until the
// context is cancelled. The sweep is advisory housekeeping: expiry is
// enforced by token signature checks, not by row presence.
func (d *DB) CleanupLoop(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = CleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.DeleteExpiredRefreshTokens(ctx, nowUnix())
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("refresh token cleanup failed", "err", err)
				}
				continue
			}
			if n > 0 {
				logger.Debug("deleted expired refresh tokens", "count", n)
			}
		}
	}
}
