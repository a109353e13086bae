package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	appcrm "github.com/saasfilter/backend/internal/application/crm"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/interfaces/http/dto"
	"github.com/saasfilter/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func testContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	c, _ := testContext(http.MethodGet, "/", "")
	assert.Empty(t, getRequestID(c))

	c.Set(middleware.RequestIDKey, "ctx-request-id")
	assert.Equal(t, "ctx-request-id", getRequestID(c))
}

func TestBaseHandlerSuccessWithMeta(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(http.MethodGet, "/", "")

	h.SuccessWithMeta(c, []string{"Acme Corp"}, &dto.Meta{Total: 2, TenantID: "org_a", Generation: 3, Filter: "New"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Total)
	assert.Equal(t, "org_a", resp.Meta.TenantID)
	assert.Equal(t, uint64(3), resp.Meta.Generation)
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"unauthorized", shared.ErrUnauthorized, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Not authenticated"},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, dto.ErrCodeForbidden, "Access to this resource is forbidden"},
		{"stale tenant", session.ErrStaleTenant, http.StatusConflict, dto.ErrCodeStaleTenant, session.ErrStaleTenant.Message},
		{"lead not found", crm.ErrLeadNotFound, http.StatusNotFound, dto.ErrCodeLeadNotFound, "Lead not found"},
		{"invalid status", crm.ErrInvalidStatus, http.StatusBadRequest, dto.ErrCodeInvalidStatus, crm.ErrInvalidStatus.Message},
		{"user not found", identity.ErrUserNotFound, http.StatusUnauthorized, dto.ErrCodeUserNotFound, identity.ErrUserNotFound.Message},
		{"wrapped", fmt.Errorf("update: %w", crm.ErrTenantNotFound), http.StatusNotFound, dto.ErrCodeTenantNotFound, "Tenant not found"},
		{"failed save", &appcrm.SaveError{LeadID: 1, Err: session.ErrStaleTenant}, http.StatusConflict, dto.ErrCodeStaleTenant, session.ErrStaleTenant.Message},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := testContext(http.MethodGet, "/", "")
			c.Set(middleware.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}

	t.Run("nil writes nothing", func(t *testing.T) {
		h := &BaseHandler{}
		c, w := testContext(http.MethodGet, "/", "")
		h.HandleError(c, nil)
		assert.Zero(t, w.Body.Len())
	})
}

func TestBaseHandlerBindJSON(t *testing.T) {
	h := &BaseHandler{}

	t.Run("malformed body", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/", "{")
		var req UpdateLeadStatusRequest
		assert.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		c, w := testContext(http.MethodPost, "/", `{"status":"Won"}`)
		var req UpdateLeadStatusRequest
		assert.False(t, h.BindJSON(c, &req))
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "status", resp.Error.Details[0].Field)
	})

	t.Run("valid", func(t *testing.T) {
		c, _ := testContext(http.MethodPost, "/", `{"status":"Negotiation"}`)
		var req UpdateLeadStatusRequest
		assert.True(t, h.BindJSON(c, &req))
		assert.Equal(t, "Negotiation", req.Status)
	})
}

func TestBaseHandlerBindQuery(t *testing.T) {
	h := &BaseHandler{}

	c, _ := testContext(http.MethodGet, "/leads?status=All", "")
	var q ListLeadsQuery
	assert.True(t, h.BindQuery(c, &q))
	assert.Equal(t, "All", q.Status)

	c, w := testContext(http.MethodGet, "/leads?status=Lost", "")
	assert.False(t, h.BindQuery(c, &q))
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
}
