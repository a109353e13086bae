package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttrPoolState distinguishes idle from in-use connections.
const AttrPoolState = attribute.Key("state")

// DBStatsFunc reports the current pool state, typically (*sql.DB).Stats.
type DBStatsFunc func() (sql.DBStats, error)

// RegisterDBPoolMetrics exposes connection pool state as observable instruments.
func RegisterDBPoolMetrics(meter metric.Meter, dbSystem string, stats DBStatsFunc) error {
	system := metric.WithAttributes(attribute.String("db.system", dbSystem))

	connections, err := meter.Int64ObservableGauge("db.pool.connections",
		metric.WithDescription("Open connections by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create db.pool.connections: %w", err)
	}
	maxOpen, err := meter.Int64ObservableGauge("db.pool.connections.max",
		metric.WithDescription("Configured maximum open connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create db.pool.connections.max: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db.pool.wait.count",
		metric.WithDescription("Connections waited for"), metric.WithUnit("{wait}"))
	if err != nil {
		return fmt.Errorf("failed to create db.pool.wait.count: %w", err)
	}
	waitTime, err := meter.Float64ObservableCounter("db.pool.wait.duration",
		metric.WithDescription("Total time blocked waiting for a connection"), metric.WithUnit("ms"))
	if err != nil {
		return fmt.Errorf("failed to create db.pool.wait.duration: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s, err := stats()
		if err != nil {
			return err
		}
		o.ObserveInt64(connections, int64(s.Idle),
			metric.WithAttributes(attribute.String("db.system", dbSystem), AttrPoolState.String("idle")))
		o.ObserveInt64(connections, int64(s.InUse),
			metric.WithAttributes(attribute.String("db.system", dbSystem), AttrPoolState.String("in_use")))
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections), system)
		o.ObserveInt64(waits, s.WaitCount, system)
		o.ObserveFloat64(waitTime, float64(s.WaitDuration.Microseconds())/1000, system)
		return nil
	}, connections, maxOpen, waits, waitTime)
	if err != nil {
		return fmt.Errorf("failed to register db pool callback: %w", err)
	}
	return nil
}
