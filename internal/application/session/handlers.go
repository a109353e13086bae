package session

import (
	"context"

	"github.com/saasfilter/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Recorder receives session lifecycle counts
type Recorder interface {
	RecordLogin(ctx context.Context, role, tenant string)
	RecordTenantSwitch(ctx context.Context, tenant string, allowed bool)
	RecordLogout(ctx context.Context)
}

// MetricsHandler turns session events into metric increments
type MetricsHandler struct {
	recorder Recorder
}

// NewMetricsHandler creates a MetricsHandler
func NewMetricsHandler(recorder Recorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// EventTypes returns the session event types
func (h *MetricsHandler) EventTypes() []string {
	return []string{EventTypeLoggedIn, EventTypeTenantSwitched, EventTypeLoggedOut}
}

// Handle records one event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch ev := event.(type) {
	case *LoggedInEvent:
		h.recorder.RecordLogin(ctx, ev.Role.String(), ev.ActiveTenant.String())
	case *TenantSwitchedEvent:
		h.recorder.RecordTenantSwitch(ctx, ev.To.String(), true)
	case *LoggedOutEvent:
		h.recorder.RecordLogout(ctx)
	}
	return nil
}

// LoggingHandler writes every session event at debug level
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// EventTypes returns the session event types
func (h *LoggingHandler) EventTypes() []string {
	return []string{EventTypeLoggedIn, EventTypeTenantSwitched, EventTypeLoggedOut}
}

// Handle logs one event
func (h *LoggingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	}
	switch ev := event.(type) {
	case *LoggedInEvent:
		fields = append(fields,
			zap.String("session_id", ev.SessionID.String()),
			zap.Int64("user_id", ev.UserID),
			zap.String("tenant_id", ev.ActiveTenant.String()),
			zap.Uint64("generation", ev.Generation),
		)
	case *TenantSwitchedEvent:
		fields = append(fields,
			zap.String("session_id", ev.SessionID.String()),
			zap.Int64("user_id", ev.UserID),
			zap.String("from", ev.From.String()),
			zap.String("to", ev.To.String()),
			zap.Uint64("generation", ev.Generation),
		)
	case *LoggedOutEvent:
		fields = append(fields,
			zap.String("session_id", ev.SessionID.String()),
			zap.Int64("user_id", ev.UserID),
		)
	}
	h.logger.Debug("session event", fields...)
	return nil
}

var (
	_ shared.EventHandler = (*MetricsHandler)(nil)
	_ shared.EventHandler = (*LoggingHandler)(nil)
)
