package handler

import (
	"github.com/gin-gonic/gin"
	appidentity "github.com/saasfilter/backend/internal/application/identity"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/interfaces/http/middleware"
)

// AuthHandler handles login, logout and session state requests
type AuthHandler struct {
	BaseHandler
	authService *appidentity.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *appidentity.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login authenticates an email against the directory and opens a session.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), appidentity.LoginInput{
		Email: req.Email,
		IP:    c.ClientIP(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LoginResponse{
		Token: TokenResponse{
			AccessToken: result.AccessToken,
			ExpiresAt:   result.ExpiresAt,
			TokenType:   result.TokenType,
		},
		Session: toSessionResponse(result.Session),
	})
}

// Logout revokes the token and destroys its session. Repeating it is harmless.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.GetClaims(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, LogoutResponse{Message: "Logged out"})
}

// Session returns the current session state.
// GET /api/v1/session
func (h *AuthHandler) Session(c *gin.Context) {
	store := middleware.GetSession(c)
	if store == nil {
		h.HandleError(c, shared.ErrUnauthorized)
		return
	}
	h.Success(c, toSessionResponse(appidentity.ToSessionInfo(store.CurrentState())))
}

// SwitchTenant activates a granted tenant. Asking for a tenant the identity does not
// hold answers 200 with switched=false and the unchanged state.
// PUT /api/v1/session/tenant
func (h *AuthHandler) SwitchTenant(c *gin.Context) {
	var req SwitchTenantRequest
	if !h.BindJSON(c, &req) {
		return
	}
	store := middleware.GetSession(c)
	if store == nil {
		h.HandleError(c, shared.ErrUnauthorized)
		return
	}

	result := h.authService.SwitchTenant(c.Request.Context(), store, req.TenantID)
	h.Success(c, SwitchTenantResponse{
		Switched: result.Switched,
		Session:  toSessionResponse(result.Session),
	})
}

// Access probes the role gate for the session identity.
// GET /api/v1/access?role=admin
func (h *AuthHandler) Access(c *gin.Context) {
	var q AccessQuery
	if !h.BindQuery(c, &q) {
		return
	}
	role, err := identity.ParseRole(q.Role)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	store := middleware.GetSession(c)
	if store == nil {
		h.HandleError(c, shared.ErrUnauthorized)
		return
	}

	h.Success(c, AccessResponse{
		Role:    role.String(),
		Allowed: h.authService.CanAccess(store, role),
	})
}
