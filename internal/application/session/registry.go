package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saasfilter/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for an unknown, destroyed or lapsed session id
var ErrSessionNotFound = shared.NewDomainError("UNAUTHORIZED", "Session not found or expired")

type registryEntry struct {
	store     *Store
	expiresAt time.Time // zero never lapses
}

// Registry owns one Store per client session. Sessions given an expiry are dropped once it
// passes, whether or not the client ever logs out.
type Registry struct {
	publisher shared.EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]registryEntry
}

// NewRegistry creates a registry whose stores publish to publisher (may be nil)
func NewRegistry(publisher shared.EventPublisher, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[uuid.UUID]registryEntry),
	}
}

// Create registers a new empty store under a fresh id
func (r *Registry) Create() *Store {
	s := NewStore(
		WithPublisher(r.publisher),
		WithLogger(r.logger),
	)

	r.mu.Lock()
	r.entries[s.ID()] = registryEntry{store: s}
	r.mu.Unlock()
	return s
}

// ExpireAt sets when the session lapses, normally the expiry of the token bound to it.
// Unknown ids are ignored.
func (r *Registry) ExpireAt(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.expiresAt = at
		r.entries[id] = e
	}
}

// Get returns the store for id
func (r *Registry) Get(id uuid.UUID) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.lapsed(r.now()) {
		delete(r.entries, id)
		r.logger.Debug("session lapsed", zap.String("session_id", id.String()))
		return nil, ErrSessionNotFound
	}
	return e.store, nil
}

// Remove forgets the store for id. Unknown ids are ignored.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len returns the number of live sessions, dropping lapsed ones first
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.entries)
}

// Sweep drops every lapsed session and returns how many were dropped
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

func (r *Registry) sweepLocked() int {
	now := r.now()
	dropped := 0
	for id, e := range r.entries {
		if e.lapsed(now) {
			delete(r.entries, id)
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Debug("lapsed sessions dropped", zap.Int("count", dropped))
	}
	return dropped
}

func (e registryEntry) lapsed(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
