package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/saasfilter/backend/internal/infrastructure/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider exports metrics periodically over OTLP gRPC.
// With telemetry or metrics disabled it hands out the global no-op meter.
func NewMeterProvider(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*MeterProvider, error) {
	if !cfg.Enabled || !cfg.MetricsEnabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return &MeterProvider{logger: logger}, nil
	}

	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	mp, err := NewMeterProviderWithReader(cfg.ServiceName, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), logger)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp.provider)
	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// NewMeterProviderWithReader builds a provider around an arbitrary reader (tests use a
// ManualReader). It does not touch the global provider.
func NewMeterProviderWithReader(serviceName string, reader sdkmetric.Reader, logger *zap.Logger) (*MeterProvider, error) {
	res, err := newResource(serviceName)
	if err != nil {
		return nil, err
	}
	return &MeterProvider{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)),
		logger:   logger,
	}, nil
}

// Meter returns a named meter from the provider.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled returns whether metrics are exported
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// Shutdown flushes pending metrics and stops the provider
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.logger.Info("OpenTelemetry MeterProvider shutdown complete")
	return nil
}

// Attribute keys shared by dashboard instruments and spans
const (
	AttrTenantID  = attribute.Key("tenant_id")
	AttrSessionID = attribute.Key("session_id")
	AttrUserID    = attribute.Key("user_id")
	AttrRole      = attribute.Key("role")
	AttrOutcome   = attribute.Key("outcome")
	AttrResource  = attribute.Key("resource")
	AttrAllowed   = attribute.Key("allowed")
)

// DashboardMetrics holds the session and lead instruments
type DashboardMetrics struct {
	logins         metric.Int64Counter
	loginFailures  metric.Int64Counter
	tenantSwitches metric.Int64Counter
	logouts        metric.Int64Counter
	leadUpdates    metric.Int64Counter
	staleResults   metric.Int64Counter
}

// NewDashboardMetrics registers the instruments on meter
func NewDashboardMetrics(meter metric.Meter) (*DashboardMetrics, error) {
	m := &DashboardMetrics{}
	var err error

	if m.logins, err = meter.Int64Counter("saasfilter.session.logins",
		metric.WithDescription("Successful logins"), metric.WithUnit("{login}")); err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}
	if m.loginFailures, err = meter.Int64Counter("saasfilter.session.login_failures",
		metric.WithDescription("Rejected logins"), metric.WithUnit("{login}")); err != nil {
		return nil, fmt.Errorf("failed to create login failures counter: %w", err)
	}
	if m.tenantSwitches, err = meter.Int64Counter("saasfilter.session.tenant_switches",
		metric.WithDescription("Tenant switch attempts"), metric.WithUnit("{switch}")); err != nil {
		return nil, fmt.Errorf("failed to create tenant switches counter: %w", err)
	}
	if m.logouts, err = meter.Int64Counter("saasfilter.session.logouts",
		metric.WithDescription("Logouts"), metric.WithUnit("{logout}")); err != nil {
		return nil, fmt.Errorf("failed to create logouts counter: %w", err)
	}
	if m.leadUpdates, err = meter.Int64Counter("saasfilter.leads.status_updates",
		metric.WithDescription("Lead status updates by outcome"), metric.WithUnit("{update}")); err != nil {
		return nil, fmt.Errorf("failed to create lead updates counter: %w", err)
	}
	if m.staleResults, err = meter.Int64Counter("saasfilter.results.stale_dropped",
		metric.WithDescription("Results discarded because the active tenant changed"), metric.WithUnit("{result}")); err != nil {
		return nil, fmt.Errorf("failed to create stale results counter: %w", err)
	}
	return m, nil
}

// RegisterActiveSessions reports the live session count as an observable gauge
func (m *DashboardMetrics) RegisterActiveSessions(meter metric.Meter, count func() int64) error {
	_, err := meter.Int64ObservableGauge("saasfilter.session.active",
		metric.WithDescription("Live authenticated sessions"),
		metric.WithUnit("{session}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(count())
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create active sessions gauge: %w", err)
	}
	return nil
}

// RecordLogin counts a successful login
func (m *DashboardMetrics) RecordLogin(ctx context.Context, role, tenant string) {
	m.logins.Add(ctx, 1, metric.WithAttributes(AttrRole.String(role), AttrTenantID.String(tenant)))
}

// RecordLoginFailure counts a rejected login by error code
func (m *DashboardMetrics) RecordLoginFailure(ctx context.Context, code string) {
	m.loginFailures.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(code)))
}

// RecordTenantSwitch counts a switch attempt to tenant
func (m *DashboardMetrics) RecordTenantSwitch(ctx context.Context, tenant string, allowed bool) {
	m.tenantSwitches.Add(ctx, 1, metric.WithAttributes(AttrTenantID.String(tenant), AttrAllowed.Bool(allowed)))
}

// RecordLogout counts a logout
func (m *DashboardMetrics) RecordLogout(ctx context.Context) {
	m.logouts.Add(ctx, 1)
}

// RecordLeadUpdate counts a status update with its outcome ("ok" or an error code)
func (m *DashboardMetrics) RecordLeadUpdate(ctx context.Context, tenant, outcome string) {
	m.leadUpdates.Add(ctx, 1, metric.WithAttributes(AttrTenantID.String(tenant), AttrOutcome.String(outcome)))
}

// RecordStaleResult counts a discarded result for resource ("leads", "calls", "lead_update")
func (m *DashboardMetrics) RecordStaleResult(ctx context.Context, resource string) {
	m.staleResults.Add(ctx, 1, metric.WithAttributes(AttrResource.String(resource)))
}
