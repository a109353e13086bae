package persistence

import (
	"context"
	"time"

	"github.com/saasfilter/backend/internal/infrastructure/config"
)

// Latency simulates backend round trips
type Latency struct {
	Login  time.Duration
	Fetch  time.Duration
	Update time.Duration
}

// LatencyFromConfig maps the mock config section
func LatencyFromConfig(cfg config.MockConfig) Latency {
	return Latency{Login: cfg.LoginLatency, Fetch: cfg.FetchLatency, Update: cfg.UpdateLatency}
}

// wait blocks for d or until ctx is done
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
