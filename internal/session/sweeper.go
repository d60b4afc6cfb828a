package session

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often RunSweeper prunes expired state.
const DefaultSweepInterval = time.Hour

// Sweeper removes expired entries from an in-memory table.
type Sweeper interface {
	Sweep(now time.Time) int
}

// RunSweeper calls Sweep on every sweeper each interval until ctx is cancelled.
func RunSweeper(ctx context.Context, interval time.Duration, sweepers ...Sweeper) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := 0
			for _, s := range sweepers {
				removed += s.Sweep(now)
			}
			if removed > 0 {
				slog.Debug("swept expired entries", "count", removed)
			}
		}
	}
}
