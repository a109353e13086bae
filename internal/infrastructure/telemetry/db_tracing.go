package telemetry

import (
	"github.com/saasfilter/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// GormTracingPlugins returns the otelgorm plugin when database tracing is on, or nothing.
// Query variables are never attached to spans. A nil tp uses the global provider.
func GormTracingPlugins(cfg config.TelemetryConfig, dbSystem string, tp trace.TracerProvider) []gorm.Plugin {
	if !cfg.Enabled || !cfg.DBTraceEnabled {
		return nil
	}
	opts := []otelgorm.Option{
		otelgorm.WithDBName(dbSystem),
		otelgorm.WithoutQueryVariables(),
	}
	if tp != nil {
		opts = append(opts, otelgorm.WithTracerProvider(tp))
	}
	return []gorm.Plugin{otelgorm.NewPlugin(opts...)}
}
