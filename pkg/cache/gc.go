package cache

import (
	"context"
	"time"
)

// Sweep removes entries that have no subscribers, no fetch in flight and
// whose last successful fetch (or creation, if none) is older than GCTime.
// It returns the number of entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if len(e.listeners) > 0 || e.inFlight {
			continue
		}
		if now.Sub(e.gcAnchor()) < m.config.GCTime {
			continue
		}
		delete(m.entries, key)
		removed++
	}
	remaining := len(m.entries)
	m.mu.Unlock()

	if removed > 0 {
		CacheEntries.Sub(float64(removed))
		Evictions.Add(float64(removed))
		m.logger.Info().
			Int("removed", removed).
			Int("remaining", remaining).
			Msg("Garbage-collected idle entries")
	}

	return removed
}

// Run sweeps every SweepInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	m.logger.Debug().Dur("interval", m.config.SweepInterval).Msg("Sweeper started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
