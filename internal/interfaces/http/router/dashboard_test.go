package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appcrm "github.com/saasfilter/backend/internal/application/crm"
	appidentity "github.com/saasfilter/backend/internal/application/identity"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/infrastructure/auth"
	"github.com/saasfilter/backend/internal/infrastructure/config"
	"github.com/saasfilter/backend/internal/infrastructure/event"
	"github.com/saasfilter/backend/internal/infrastructure/persistence"
	"github.com/saasfilter/backend/internal/interfaces/http/dto"
	"github.com/saasfilter/backend/internal/interfaces/http/handler"
	"github.com/saasfilter/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type testServer struct {
	t        *testing.T
	engine   http.Handler
	sessions *session.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := zap.NewNop()
	bus := event.NewInMemoryBus(log)
	registry := session.NewRegistry(bus, log)
	tokens := auth.NewJWTService(config.JWTConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "saasfilter-test",
	})
	directory := persistence.NewMemoryDirectory(persistence.DemoDirectory(), persistence.Latency{})
	authService := appidentity.NewAuthService(directory, registry, tokens, auth.NewInMemoryTokenBlacklist(), nil, log)
	crmService := appcrm.NewService(persistence.NewMemoryRepository(persistence.DemoDataset(), persistence.Latency{}), nil, log)

	engine := NewEngine(Dependencies{
		Logger:    log,
		Sessions:  authService,
		Auth:      handler.NewAuthHandler(authService),
		CRM:       handler.NewCRMHandler(crmService),
		System:    handler.NewSystemHandler("test", nil, registry),
		Tracing:   middleware.TracingConfig{Enabled: false},
		Profiling: middleware.ProfilingConfig{Enabled: false},
		CORS:      middleware.DefaultCORSConfig(),
		Security:  middleware.DefaultSecurityConfig(),
	})
	return &testServer{t: t, engine: engine, sessions: registry}
}

func (s *testServer) do(method, path, token string, body any, headers ...string) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", handler.LoginRequest{Email: email})
	require.Equal(s.t, http.StatusOK, code)

	var resp handler.LoginResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &resp))
	require.NotEmpty(s.t, resp.Token.AccessToken)
	return resp.Token.AccessToken
}

func (s *testServer) leadNames(token, query string) ([]string, *dto.Meta) {
	s.t.Helper()
	code, env := s.do(http.MethodGet, "/api/v1/leads"+query, token, nil)
	require.Equal(s.t, http.StatusOK, code)

	var leads []handler.LeadResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &leads))
	names := make([]string, len(leads))
	for i, l := range leads {
		names[i] = l.Name
	}
	return names, env.Meta
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestDashboard_Login(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", handler.LoginRequest{Email: "admin@test.com"})
	require.Equal(t, http.StatusOK, code)
	resp := decode[handler.LoginResponse](t, env)

	assert.Equal(t, "Bearer", resp.Token.TokenType)
	require.NotNil(t, resp.Session.User)
	assert.Equal(t, "Alice Admin", resp.Session.User.Name)
	assert.Equal(t, "Administrator", resp.Session.User.RoleName)
	assert.Equal(t, []handler.TenantResponse{{ID: "org_a", Label: "ORG_A"}, {ID: "org_b", Label: "ORG_B"}}, resp.Session.User.Tenants)
	assert.Equal(t, &handler.TenantResponse{ID: "org_a", Label: "ORG_A"}, resp.Session.ActiveTenant)
	assert.Equal(t, 1, s.sessions.Len())

	t.Run("unknown user", func(t *testing.T) {
		code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", handler.LoginRequest{Email: "nobody@test.com"})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, dto.ErrCodeUserNotFound, env.Error.Code)
		assert.Contains(t, env.Error.Message, "admin@test.com")
	})

	t.Run("missing email", func(t *testing.T) {
		code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	})
}

func TestDashboard_AdminSwitchesTenant(t *testing.T) {
	s := newTestServer(t)
	token := s.login("admin@test.com")

	names, meta := s.leadNames(token, "")
	assert.Equal(t, []string{"Acme Corp", "Globex"}, names)
	assert.Equal(t, "org_a", meta.TenantID)
	assert.Equal(t, 2, meta.Total)

	code, env := s.do(http.MethodPut, "/api/v1/session/tenant", token, handler.SwitchTenantRequest{TenantID: "org_b"})
	require.Equal(t, http.StatusOK, code)
	switched := decode[handler.SwitchTenantResponse](t, env)
	assert.True(t, switched.Switched)
	assert.Equal(t, "org_b", switched.Session.ActiveTenant.ID)

	names, meta = s.leadNames(token, "")
	assert.Equal(t, []string{"Soylent Corp"}, names)
	assert.Equal(t, "org_b", meta.TenantID)
	assert.Equal(t, switched.Session.Generation, meta.Generation)

	code, env = s.do(http.MethodGet, "/api/v1/calls", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]handler.CallResponse](t, env))
	assert.Equal(t, appcrm.EmptyCallsMessage, env.Meta.EmptyMessage)
}

func TestDashboard_AgentCannotSwitchToUngrantedTenant(t *testing.T) {
	s := newTestServer(t)
	token := s.login("agent@test.com")

	code, env := s.do(http.MethodPut, "/api/v1/session/tenant", token, handler.SwitchTenantRequest{TenantID: "org_b"})
	require.Equal(t, http.StatusOK, code)
	resp := decode[handler.SwitchTenantResponse](t, env)
	assert.False(t, resp.Switched)
	assert.Equal(t, "org_a", resp.Session.ActiveTenant.ID)

	names, _ := s.leadNames(token, "")
	assert.Equal(t, []string{"Acme Corp", "Globex"}, names)

	code, env = s.do(http.MethodGet, "/api/v1/calls", token, nil)
	require.Equal(t, http.StatusOK, code)
	calls := decode[[]handler.CallResponse](t, env)
	require.Len(t, calls, 1)
	assert.Equal(t, "12m - Meeting Set", calls[0].Summary)
}

func TestDashboard_AgentCannotEdit(t *testing.T) {
	s := newTestServer(t)
	token := s.login("agent@test.com")

	code, env := s.do(http.MethodPatch, "/api/v1/leads/1/status", token, handler.UpdateLeadStatusRequest{Status: "Closed"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, dto.ErrCodeForbidden, env.Error.Code)

	names, _ := s.leadNames(token, "?status=Closed")
	assert.Equal(t, []string{"Globex"}, names)

	code, env = s.do(http.MethodGet, "/api/v1/access?role=admin", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[handler.AccessResponse](t, env).Allowed)
}

func TestDashboard_AdminEditsLead(t *testing.T) {
	s := newTestServer(t)
	token := s.login("admin@test.com")

	code, env := s.do(http.MethodPatch, "/api/v1/leads/1/status", token, handler.UpdateLeadStatusRequest{Status: "closed"})
	require.Equal(t, http.StatusOK, code)
	lead := decode[handler.LeadResponse](t, env)
	assert.Equal(t, "Acme Corp", lead.Name)
	assert.Equal(t, "Closed", lead.Status)
	assert.Equal(t, "$5,000", lead.ValueLabel)

	names, meta := s.leadNames(token, "?status=Closed")
	assert.Equal(t, []string{"Acme Corp", "Globex"}, names)
	assert.Equal(t, "Closed", meta.Filter)

	t.Run("lead of another tenant", func(t *testing.T) {
		code, env := s.do(http.MethodPatch, "/api/v1/leads/3/status", token, handler.UpdateLeadStatusRequest{Status: "New"})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, dto.ErrCodeLeadNotFound, env.Error.Code)
	})

	t.Run("invalid status", func(t *testing.T) {
		code, env := s.do(http.MethodPatch, "/api/v1/leads/1/status", token, handler.UpdateLeadStatusRequest{Status: "Won"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		code, env := s.do(http.MethodPatch, "/api/v1/leads/0/status", token, handler.UpdateLeadStatusRequest{Status: "New"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	})
}

func TestDashboard_EmptyFilterResult(t *testing.T) {
	s := newTestServer(t)
	token := s.login("admin@test.com")

	code, _ := s.do(http.MethodPut, "/api/v1/session/tenant", token, handler.SwitchTenantRequest{TenantID: "org_b"})
	require.Equal(t, http.StatusOK, code)

	names, meta := s.leadNames(token, "?status=New")
	assert.Empty(t, names)
	assert.Equal(t, appcrm.EmptyLeadsMessage, meta.EmptyMessage)
	assert.Equal(t, 1, meta.Total)

	code, env := s.do(http.MethodGet, "/api/v1/leads?status=Lost", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
}

func TestDashboard_ExpectedTenantHeader(t *testing.T) {
	s := newTestServer(t)
	token := s.login("admin@test.com")

	code, _ := s.do(http.MethodGet, "/api/v1/leads", token, nil, middleware.TenantIDHeader, "org_a")
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPut, "/api/v1/session/tenant", token, handler.SwitchTenantRequest{TenantID: "org_b"})
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodPatch, "/api/v1/leads/1/status", token,
		handler.UpdateLeadStatusRequest{Status: "Closed"}, middleware.TenantIDHeader, "org_a")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, dto.ErrCodeStaleTenant, env.Error.Code)
}

func TestDashboard_Logout(t *testing.T) {
	s := newTestServer(t)
	token := s.login("admin@test.com")

	code, env := s.do(http.MethodGet, "/api/v1/session", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "org_a", decode[handler.SessionResponse](t, env).ActiveTenant.ID)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, s.sessions.Len())

	code, env = s.do(http.MethodGet, "/api/v1/leads", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, dto.ErrCodeUnauthorized, env.Error.Code)

	code, _ = s.do(http.MethodGet, "/api/v1/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDashboard_Health(t *testing.T) {
	s := newTestServer(t)
	s.login("agent@test.com")

	code, env := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	health := decode[handler.HealthResponse](t, env)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "memory", health.Database)
	assert.Equal(t, 1, health.Sessions)
}
