package session

import (
	"context"
	"testing"

	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockRecorder is a mock implementation of Recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordLogin(ctx context.Context, role, tenant string) {
	m.Called(ctx, role, tenant)
}

func (m *MockRecorder) RecordTenantSwitch(ctx context.Context, tenant string, allowed bool) {
	m.Called(ctx, tenant, allowed)
}

func (m *MockRecorder) RecordLogout(ctx context.Context) {
	m.Called(ctx)
}

// direct hands events straight to one handler
type direct struct {
	handler shared.EventHandler
}

func (d direct) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, ev := range events {
		if err := d.handler.Handle(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func TestMetricsHandler(t *testing.T) {
	ctx := context.Background()
	rec := new(MockRecorder)
	h := NewMetricsHandler(rec)
	s := NewStore(WithPublisher(direct{handler: h}))

	rec.On("RecordLogin", ctx, "admin", "org_a").Once()
	rec.On("RecordTenantSwitch", ctx, "org_b", true).Once()
	rec.On("RecordLogout", ctx).Once()

	require.NoError(t, s.Login(ctx, adminIdentity(t)))
	assert.False(t, s.SwitchTenant(ctx, "org_c"))
	require.True(t, s.SwitchTenant(ctx, "org_b"))
	s.Logout(ctx)
	s.Logout(ctx)

	rec.AssertExpectations(t)
	assert.ElementsMatch(t, []string{EventTypeLoggedIn, EventTypeTenantSwitched, EventTypeLoggedOut}, h.EventTypes())
}

func TestLoggingHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewLoggingHandler(zap.New(core))

	ev := &TenantSwitchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantSwitched),
		From:            "org_a",
		To:              "org_b",
		Generation:      3,
	}
	require.NoError(t, h.Handle(context.Background(), ev))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, EventTypeTenantSwitched, fields["event_type"])
	assert.Equal(t, "org_b", fields["to"])
	assert.Equal(t, uint64(3), fields["generation"])
}
