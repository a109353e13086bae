package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	appidentity "github.com/saasfilter/backend/internal/application/identity"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/infrastructure/auth"
	"github.com/saasfilter/backend/internal/infrastructure/config"
	"github.com/saasfilter/backend/internal/infrastructure/persistence"
	"github.com/saasfilter/backend/internal/interfaces/http/dto"
	"github.com/saasfilter/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(nil, zap.NewNop())
	tokens := auth.NewJWTService(config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "handler-test"})
	directory := persistence.NewMemoryDirectory(persistence.DemoDirectory(), persistence.Latency{})
	svc := appidentity.NewAuthService(directory, registry, tokens, nil, nil, zap.NewNop())
	return NewAuthHandler(svc), registry
}

func agentStore(t *testing.T, registry *session.Registry) *session.Store {
	t.Helper()
	bob, err := identity.NewIdentity(2, "Bob Agent", "agent@test.com", identity.RoleAgent, []identity.TenantID{"org_a"})
	require.NoError(t, err)
	store := registry.Create()
	require.NoError(t, store.Login(context.Background(), bob))
	return store
}

func TestAuthHandler_Login(t *testing.T) {
	h, registry := newAuthHandler(t)

	t.Run("missing email", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/auth/login", `{}`)
		h.Login(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/auth/login", `{"email":"nobody@test.com"}`)
		h.Login(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUserNotFound, decodeResponse(t, w).Error.Code)
		assert.Zero(t, registry.Len())
	})

	t.Run("agent", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/auth/login", `{"email":"agent@test.com"}`)
		h.Login(c)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data LoginResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Bearer", resp.Data.Token.TokenType)
		assert.NotEmpty(t, resp.Data.Token.AccessToken)
		require.NotNil(t, resp.Data.Session.User)
		assert.Equal(t, "agent", resp.Data.Session.User.Role)
		require.NotNil(t, resp.Data.Session.ActiveTenant)
		assert.Equal(t, "ORG_A", resp.Data.Session.ActiveTenant.Label)
		assert.Equal(t, 1, registry.Len())
	})
}

func TestAuthHandler_RequiresSession(t *testing.T) {
	h, _ := newAuthHandler(t)

	c, w := testContext(http.MethodGet, "/session", "")
	h.Session(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = testContext(http.MethodGet, "/access?role=agent", "")
	h.Access(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_SwitchTenant(t *testing.T) {
	h, registry := newAuthHandler(t)
	store := agentStore(t, registry)

	t.Run("malformed tenant id", func(t *testing.T) {
		c, w := testContext(http.MethodPut, "/session/tenant", `{"tenant_id":"org b!"}`)
		c.Set(middleware.SessionStoreKey, store)
		h.SwitchTenant(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ungranted tenant", func(t *testing.T) {
		c, w := testContext(http.MethodPut, "/session/tenant", `{"tenant_id":"org_b"}`)
		c.Set(middleware.SessionStoreKey, store)
		h.SwitchTenant(c)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data SwitchTenantResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Switched)
		assert.Equal(t, "org_a", resp.Data.Session.ActiveTenant.ID)
		assert.Equal(t, identity.TenantID("org_a"), store.CurrentState().ActiveTenant)
	})
}

func TestAuthHandler_Access(t *testing.T) {
	h, registry := newAuthHandler(t)
	store := agentStore(t, registry)

	tests := []struct {
		query   string
		status  int
		allowed bool
	}{
		{"role=agent", http.StatusOK, true},
		{"role=admin", http.StatusOK, false},
		{"role=owner", http.StatusBadRequest, false},
		{"", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, w := testContext(http.MethodGet, "/access?"+tt.query, "")
			c.Set(middleware.SessionStoreKey, store)
			h.Access(c)
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}

			var resp struct {
				Data AccessResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.allowed, resp.Data.Allowed)
		})
	}
}
