package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/infrastructure/auth"
	"github.com/saasfilter/backend/internal/infrastructure/logger"
	"github.com/saasfilter/backend/internal/interfaces/http/dto"
)

// Context keys set by SessionAuth
const (
	SessionStoreKey = "session_store"
	ClaimsKey       = "session_claims"
	SessionIDKey    = "session_id"
	TenantIDKey     = "tenant_id"
	UserIDKey       = "user_id"
)

// SessionResolver maps a bearer token to its session
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Store, *auth.Claims, error)
}

// SessionAuth requires a valid bearer token bound to a live session. The session store is
// put in the gin context; the active tenant is read from it, never from the request.
func SessionAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, dto.ErrCodeUnauthorized, "Authorization header is missing or malformed")
			return
		}

		store, claims, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			message := "Invalid or expired token"
			var de *shared.DomainError
			if errors.As(err, &de) {
				message = de.Message
			}
			abortWithError(c, dto.ErrCodeUnauthorized, message)
			return
		}

		st := store.CurrentState()
		c.Set(SessionStoreKey, store)
		c.Set(ClaimsKey, claims)
		c.Set(SessionIDKey, store.ID().String())
		c.Set(TenantIDKey, st.ActiveTenant.String())
		c.Set(UserIDKey, strconv.FormatInt(claims.UserID, 10))
		c.Request = c.Request.WithContext(
			logger.WithSession(c.Request.Context(), store.ID().String(), st.ActiveTenant.String()),
		)
		c.Next()
	}
}

// GetSession returns the store put in the context by SessionAuth
func GetSession(c *gin.Context) *session.Store {
	if v, ok := c.Get(SessionStoreKey); ok {
		if s, ok := v.(*session.Store); ok {
			return s
		}
	}
	return nil
}

// GetClaims returns the token claims put in the context by SessionAuth
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// RequireRole lets the request through when the session identity passes the role gate
// for required. Admin passes every gate.
func RequireRole(required identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := GetSession(c)
		if store == nil {
			abortWithError(c, dto.ErrCodeUnauthorized, "Not authenticated")
			return
		}
		if !identity.CanAccess(store.CurrentState().Identity, required) {
			abortWithError(c, dto.ErrCodeForbidden, "Requires role "+required.String())
			return
		}
		c.Next()
	}
}

// ExpectedTenant rejects requests whose X-Tenant-ID header names a tenant other than the
// session's active one with 409. The header is optional.
func ExpectedTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(TenantIDHeader))
		if raw == "" {
			c.Next()
			return
		}
		expected, err := identity.ParseTenantID(raw)
		if err != nil {
			abortWithError(c, dto.ErrCodeInvalidTenant, "Invalid "+TenantIDHeader+" header")
			return
		}
		store := GetSession(c)
		if store == nil {
			c.Next()
			return
		}
		if active := store.CurrentState().ActiveTenant; active != expected {
			abortWithError(c, dto.ErrCodeStaleTenant, session.ErrStaleTenant.Message)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
