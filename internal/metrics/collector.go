package metrics

import (
	"context"
	"time"
)

// Counter reports the current size of an in-memory table.
type Counter interface {
	Count() int
}

// Sources are the tables sampled by the collector. Nil entries are skipped.
type Sources struct {
	Sessions Counter
	Lockouts Counter
}

// StartCollector starts a background loop that periodically samples gauges.
// It returns when ctx is cancelled.
func StartCollector(ctx context.Context, src Sources, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on startup
	Collect(src)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Collect(src)
		}
	}
}

// Collect updates the gauges once.
func Collect(src Sources) {
	if src.Sessions != nil {
		ActiveSessionsTotal.Set(float64(src.Sessions.Count()))
	}
	if src.Lockouts != nil {
		LockedAddressesTotal.Set(float64(src.Lockouts.Count()))
	}
}
