package session

import (
	"github.com/google/uuid"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
)

// Session event types
const (
	EventTypeLoggedIn       = "session.logged_in"
	EventTypeTenantSwitched = "session.tenant_switched"
	EventTypeLoggedOut      = "session.logged_out"
)

// LoggedInEvent is published after a successful login
type LoggedInEvent struct {
	shared.BaseDomainEvent
	SessionID    uuid.UUID         `json:"session_id"`
	UserID       int64             `json:"user_id"`
	Role         identity.Role     `json:"role"`
	ActiveTenant identity.TenantID `json:"active_tenant"`
	Generation   uint64            `json:"generation"`
}

// TenantSwitchedEvent is published after the active tenant changed
type TenantSwitchedEvent struct {
	shared.BaseDomainEvent
	SessionID  uuid.UUID         `json:"session_id"`
	UserID     int64             `json:"user_id"`
	From       identity.TenantID `json:"from"`
	To         identity.TenantID `json:"to"`
	Generation uint64            `json:"generation"`
}

// LoggedOutEvent is published when a logged-in session is cleared
type LoggedOutEvent struct {
	shared.BaseDomainEvent
	SessionID uuid.UUID `json:"session_id"`
	UserID    int64     `json:"user_id"`
}
