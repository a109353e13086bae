package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType), Data: "payload"}
}

type recordingHandler struct {
	types   []string
	err     error
	panicky bool

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func (h *recordingHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, ev)
	h.mu.Unlock()
	if h.panicky {
		panic("boom")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryBus_Publish(t *testing.T) {
	bus := NewInMemoryBus(zap.NewNop())
	switched := &recordingHandler{types: []string{"session.tenant_switched"}}
	all := &recordingHandler{}
	bus.Subscribe(switched)
	bus.Subscribe(all, []string{}...)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("session.tenant_switched"),
		newTestEvent("session.logged_out"),
	))

	assert.Equal(t, 1, switched.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryBus_FailingHandlersDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryBus(nil)
	failing := &recordingHandler{err: errors.New("nope")}
	panicking := &recordingHandler{panicky: true}
	healthy := &recordingHandler{}
	for _, h := range []*recordingHandler{failing, panicking, healthy} {
		bus.Subscribe(h, "x")
	}

	err := bus.Publish(context.Background(), newTestEvent("x"))

	require.NoError(t, err)
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, panicking.count())
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryBus(nil)
	h := &recordingHandler{}
	bus.Subscribe(h, "a", "b")
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("a"), newTestEvent("b")))
	assert.Equal(t, 0, h.count())
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	a := &recordingHandler{}
	b := &recordingHandler{}
	w := &recordingHandler{}

	r.Register(a, "t1", "t2")
	r.Register(b, "t1")
	r.Register(w)

	assert.Equal(t, []shared.EventHandler{a, b, w}, r.HandlersFor("t1"))
	assert.Equal(t, []shared.EventHandler{a, w}, r.HandlersFor("t2"))
	assert.Equal(t, []shared.EventHandler{w}, r.HandlersFor("t3"))
	assert.Equal(t, 3, r.Count())

	r.Unregister(a)
	assert.Equal(t, []shared.EventHandler{b, w}, r.HandlersFor("t1"))
	assert.Equal(t, []shared.EventHandler{w}, r.HandlersFor("t2"))
	assert.Equal(t, 2, r.Count())
}
