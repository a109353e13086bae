// Package session holds the authenticated identity and the single active tenant of a
// client session. It is the only place the active tenant changes.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// State is a read-only snapshot of a session
type State struct {
	SessionID    uuid.UUID
	Identity     *identity.Identity
	ActiveTenant identity.TenantID
	// Generation increases on every change of identity or active tenant.
	Generation uint64
}

// Authenticated reports whether an identity is present
func (s State) Authenticated() bool {
	return s.Identity != nil
}

// Ticket tags an in-flight request with the tenant and generation it was issued under
type Ticket struct {
	Tenant     identity.TenantID
	Generation uint64
}

// ErrStaleTenant is returned when a result belongs to a tenant or generation that is no
// longer current.
var ErrStaleTenant = shared.NewDomainError("STALE_TENANT", "Active tenant changed while the request was in flight")

// Store is the session/tenant state store. All mutations happen under one lock so readers
// never observe an active tenant outside the identity's grants.
type Store struct {
	id        uuid.UUID
	publisher shared.EventPublisher
	logger    *zap.Logger

	mu           sync.RWMutex
	identity     *identity.Identity
	activeTenant identity.TenantID
	generation   uint64
}

// Option configures a Store
type Option func(*Store)

// WithPublisher publishes session events after each mutation
func WithPublisher(p shared.EventPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithLogger sets the store logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithID sets the session id
func WithID(id uuid.UUID) Option {
	return func(s *Store) { s.id = id }
}

// NewStore creates an empty (logged out) store
func NewStore(opts ...Option) *Store {
	s := &Store{
		id:     uuid.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id
func (s *Store) ID() uuid.UUID {
	return s.id
}

// Login replaces the identity wholesale and activates its first tenant.
// An identity without tenants fails with ErrInvalidIdentity and leaves state unchanged.
func (s *Store) Login(ctx context.Context, id *identity.Identity) error {
	if id == nil {
		return identity.ErrInvalidIdentity
	}
	first, err := id.DefaultTenant()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.identity = id.Clone()
	s.activeTenant = first
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.logger.Debug("session logged in",
		zap.String("session_id", s.id.String()),
		zap.Int64("user_id", id.ID()),
		zap.String("tenant_id", first.String()),
	)

	s.publish(ctx, &LoggedInEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoggedIn),
		SessionID:       s.id,
		UserID:          id.ID(),
		Role:            id.Role(),
		ActiveTenant:    first,
		Generation:      gen,
	})
	return nil
}

// SwitchTenant activates tenant if the identity is granted it and reports whether the
// tenant is now active. Ungranted tenants leave state unchanged and return false.
func (s *Store) SwitchTenant(ctx context.Context, tenant identity.TenantID) bool {
	s.mu.Lock()
	if s.identity == nil || !s.identity.HasTenant(tenant) {
		s.mu.Unlock()
		return false
	}
	if s.activeTenant == tenant {
		s.mu.Unlock()
		return true
	}
	from := s.activeTenant
	s.activeTenant = tenant
	s.generation++
	gen := s.generation
	userID := s.identity.ID()
	s.mu.Unlock()

	s.logger.Debug("session tenant switched",
		zap.String("session_id", s.id.String()),
		zap.String("from", from.String()),
		zap.String("to", tenant.String()),
	)

	s.publish(ctx, &TenantSwitchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantSwitched),
		SessionID:       s.id,
		UserID:          userID,
		From:            from,
		To:              tenant,
		Generation:      gen,
	})
	return true
}

// Logout clears identity and active tenant. Calling it on an empty store is a no-op.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return
	}
	userID := s.identity.ID()
	s.identity = nil
	s.activeTenant = ""
	s.generation++
	s.mu.Unlock()

	s.logger.Debug("session logged out", zap.String("session_id", s.id.String()))

	s.publish(ctx, &LoggedOutEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoggedOut),
		SessionID:       s.id,
		UserID:          userID,
	})
}

// CurrentState returns a snapshot
func (s *Store) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		SessionID:    s.id,
		Identity:     s.identity.Clone(),
		ActiveTenant: s.activeTenant,
		Generation:   s.generation,
	}
}

// Ticket captures the active tenant for a request about to be issued.
// It returns false when nobody is logged in.
func (s *Store) Ticket() (Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Ticket{}, false
	}
	return Ticket{Tenant: s.activeTenant, Generation: s.generation}, true
}

// IsCurrent reports whether a result issued under t may still be applied
func (s *Store) IsCurrent(t Ticket) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.activeTenant == t.Tenant && s.generation == t.Generation
}

// Validate returns ErrStaleTenant when t is no longer current
func (s *Store) Validate(t Ticket) error {
	if !s.IsCurrent(t) {
		return ErrStaleTenant
	}
	return nil
}

func (s *Store) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
