package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/identity"
)

// LoginInput contains the input for login
type LoginInput struct {
	Email string
	IP    string
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	TokenType   string
	Session     SessionInfo
}

// UserInfo is the logged-in identity as shown in the dashboard header
type UserInfo struct {
	ID       int64
	Name     string
	Email    string
	Role     string
	RoleName string
	Tenants  []TenantInfo
}

// TenantInfo is a tenant id with its display label
type TenantInfo struct {
	ID    string
	Label string
}

// SessionInfo is a session snapshot for transport
type SessionInfo struct {
	SessionID    uuid.UUID
	User         *UserInfo
	ActiveTenant *TenantInfo
	Generation   uint64
}

// SwitchResult reports the outcome of a tenant switch
type SwitchResult struct {
	Switched bool
	Session  SessionInfo
}

// ToSessionInfo converts a store snapshot
func ToSessionInfo(st session.State) SessionInfo {
	info := SessionInfo{
		SessionID:  st.SessionID,
		Generation: st.Generation,
	}
	if !st.Authenticated() {
		return info
	}

	id := st.Identity
	tenants := make([]TenantInfo, 0, len(id.Tenants()))
	for _, t := range id.Tenants() {
		tenants = append(tenants, toTenantInfo(t))
	}
	info.User = &UserInfo{
		ID:       id.ID(),
		Name:     id.Name(),
		Email:    id.Email(),
		Role:     id.Role().String(),
		RoleName: id.Role().Definition().DisplayName,
		Tenants:  tenants,
	}
	active := toTenantInfo(st.ActiveTenant)
	info.ActiveTenant = &active
	return info
}

func toTenantInfo(t identity.TenantID) TenantInfo {
	return TenantInfo{ID: t.String(), Label: t.Label()}
}
