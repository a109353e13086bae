package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/infrastructure/auth"
	"github.com/saasfilter/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSessionResolver is a mock implementation of SessionResolver
type MockSessionResolver struct {
	mock.Mock
}

func (m *MockSessionResolver) Resolve(ctx context.Context, token string) (*session.Store, *auth.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*session.Store), args.Get(1).(*auth.Claims), args.Error(2)
}

func loggedInStore(t *testing.T, role identity.Role, tenants ...identity.TenantID) *session.Store {
	t.Helper()
	id, err := identity.NewIdentity(7, "Test User", "user@test.com", role, tenants)
	require.NoError(t, err)
	s := session.NewStore()
	require.NoError(t, s.Login(context.Background(), id))
	return s
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func sessionRouter(resolver SessionResolver, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), SessionAuth(resolver))
	router.Use(extra...)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"session": GetSession(c).ID().String(),
			"tenant":  c.GetString(TenantIDKey),
			"user":    c.GetString(UserIDKey),
			"jti":     GetClaims(c).ID,
		})
	})
	return router
}

func TestSessionAuth(t *testing.T) {
	store := loggedInStore(t, identity.RoleAgent, "org_a")
	claims := &auth.Claims{SessionID: store.ID().String(), UserID: 7}
	claims.ID = "jti-1"

	resolver := new(MockSessionResolver)
	resolver.On("Resolve", mock.Anything, "good").Return(store, claims, nil)
	resolver.On("Resolve", mock.Anything, "revoked").
		Return(nil, nil, shared.NewDomainError("UNAUTHORIZED", "Token has been revoked"))
	router := sessionRouter(resolver)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, store.ID().String(), body["session"])
		assert.Equal(t, "org_a", body["tenant"])
		assert.Equal(t, "7", body["user"])
		assert.Equal(t, "jti-1", body["jti"])
	})

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic good",
		"empty token":  "Bearer   ",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
		})
	}

	t.Run("resolver rejects", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "bearer revoked")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		e := decodeError(t, w)
		assert.Equal(t, "Token has been revoked", e.Message)
		assert.NotEmpty(t, e.RequestID)
	})
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role     identity.Role
		required identity.Role
		want     int
	}{
		{identity.RoleAdmin, identity.RoleAdmin, http.StatusOK},
		{identity.RoleAdmin, identity.RoleAgent, http.StatusOK},
		{identity.RoleAgent, identity.RoleAgent, http.StatusOK},
		{identity.RoleAgent, identity.RoleAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role.String()+"->"+tt.required.String(), func(t *testing.T) {
			store := loggedInStore(t, tt.role, "org_a")
			resolver := new(MockSessionResolver)
			resolver.On("Resolve", mock.Anything, "tok").Return(store, &auth.Claims{}, nil)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", "Bearer tok")
			w := httptest.NewRecorder()
			sessionRouter(resolver, RequireRole(tt.required)).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, dto.ErrCodeForbidden, decodeError(t, w).Code)
			}
		})
	}

	t.Run("without session", func(t *testing.T) {
		router := gin.New()
		router.GET("/test", RequireRole(identity.RoleAgent), func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestExpectedTenant(t *testing.T) {
	store := loggedInStore(t, identity.RoleAdmin, "org_a", "org_b")
	resolver := new(MockSessionResolver)
	resolver.On("Resolve", mock.Anything, "tok").Return(store, &auth.Claims{}, nil)
	router := sessionRouter(resolver, ExpectedTenant())

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer tok")
		if header != "" {
			req.Header.Set(TenantIDHeader, header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("").Code)
	assert.Equal(t, http.StatusOK, do("org_a").Code)

	w := do("org_b")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeStaleTenant, decodeError(t, w).Code)

	w = do("org b!")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidTenant, decodeError(t, w).Code)

	require.True(t, store.SwitchTenant(context.Background(), "org_b"))
	assert.Equal(t, http.StatusOK, do("org_b").Code)
	assert.Equal(t, http.StatusConflict, do("org_a").Code)
}
