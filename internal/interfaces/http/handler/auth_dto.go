package handler

import (
	"time"

	appidentity "github.com/saasfilter/backend/internal/application/identity"
)

// =====================
// Auth Request DTOs
// =====================

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email string `json:"email" binding:"required,max=254"`
}

// SwitchTenantRequest represents the request body for a tenant switch
type SwitchTenantRequest struct {
	TenantID string `json:"tenant_id" binding:"required,tenant_id"`
}

// AccessQuery represents the role gate probe parameters
type AccessQuery struct {
	Role string `form:"role" binding:"required,oneof=admin agent"`
}

// =====================
// Auth Response DTOs
// =====================

// TokenResponse represents the token data in auth responses
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// TenantResponse is a tenant id with its display label
type TenantResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// UserResponse represents the session identity
type UserResponse struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Role     string           `json:"role"`
	RoleName string           `json:"role_name"`
	Tenants  []TenantResponse `json:"tenants"`
}

// SessionResponse is the current session state
type SessionResponse struct {
	SessionID    string          `json:"session_id"`
	User         *UserResponse   `json:"user"`
	ActiveTenant *TenantResponse `json:"active_tenant"`
	Generation   uint64          `json:"generation"`
}

// LoginResponse represents the response body for successful login
type LoginResponse struct {
	Token   TokenResponse   `json:"token"`
	Session SessionResponse `json:"session"`
}

// SwitchTenantResponse reports whether the switch happened and the resulting state
type SwitchTenantResponse struct {
	Switched bool            `json:"switched"`
	Session  SessionResponse `json:"session"`
}

// AccessResponse is the role gate probe result
type AccessResponse struct {
	Role    string `json:"role"`
	Allowed bool   `json:"allowed"`
}

// LogoutResponse represents the response body for logout
type LogoutResponse struct {
	Message string `json:"message"`
}

func toSessionResponse(info appidentity.SessionInfo) SessionResponse {
	resp := SessionResponse{
		SessionID:  info.SessionID.String(),
		Generation: info.Generation,
	}
	if info.ActiveTenant != nil {
		active := TenantResponse(*info.ActiveTenant)
		resp.ActiveTenant = &active
	}
	if u := info.User; u != nil {
		tenants := make([]TenantResponse, len(u.Tenants))
		for i, t := range u.Tenants {
			tenants[i] = TenantResponse(t)
		}
		resp.User = &UserResponse{
			ID:       u.ID,
			Name:     u.Name,
			Email:    u.Email,
			Role:     u.Role,
			RoleName: u.RoleName,
			Tenants:  tenants,
		}
	}
	return resp
}
