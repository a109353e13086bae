package handler

import (
	"github.com/gin-gonic/gin"
	appcrm "github.com/saasfilter/backend/internal/application/crm"
	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/interfaces/http/dto"
	"github.com/saasfilter/backend/internal/interfaces/http/middleware"
)

// CRMHandler serves the active tenant's leads and calls
type CRMHandler struct {
	BaseHandler
	service *appcrm.Service
}

// NewCRMHandler creates a new CRM handler
func NewCRMHandler(service *appcrm.Service) *CRMHandler {
	return &CRMHandler{service: service}
}

// ListLeads returns the active tenant's leads, optionally filtered by status.
// GET /api/v1/leads?status=Closed
func (h *CRMHandler) ListLeads(c *gin.Context) {
	var q ListLeadsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := crm.ParseStatusFilter(q.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	store := middleware.GetSession(c)
	if store == nil {
		h.HandleError(c, shared.ErrUnauthorized)
		return
	}

	result, err := h.service.Leads(c.Request.Context(), store, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	meta := &dto.Meta{
		Total:      result.Total,
		TenantID:   result.Tenant.String(),
		Generation: result.Generation,
		Filter:     result.Filter.String(),
	}
	if len(result.Leads) == 0 {
		meta.EmptyMessage = appcrm.EmptyLeadsMessage
	}
	h.SuccessWithMeta(c, toLeadResponses(result.Leads), meta)
}

// UpdateLeadStatus changes a lead's status in the active tenant. Admin only.
// PATCH /api/v1/leads/:id/status
func (h *CRMHandler) UpdateLeadStatus(c *gin.Context) {
	var uri LeadURI
	if !h.BindURI(c, &uri) {
		return
	}
	var req UpdateLeadStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	status, err := crm.ParseLeadStatus(req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	store := middleware.GetSession(c)
	if store == nil {
		h.HandleError(c, shared.ErrUnauthorized)
		return
	}

	lead, err := h.service.UpdateLeadStatus(c.Request.Context(), store, uri.ID, status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLeadResponse(*lead))
}

// ListCalls returns the active tenant's calls.
// GET /api/v1/calls
func (h *CRMHandler) ListCalls(c *gin.Context) {
	store := middleware.GetSession(c)
	if store == nil {
		h.HandleError(c, shared.ErrUnauthorized)
		return
	}

	result, err := h.service.Calls(c.Request.Context(), store)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	meta := &dto.Meta{
		Total:      len(result.Calls),
		TenantID:   result.Tenant.String(),
		Generation: result.Generation,
	}
	if len(result.Calls) == 0 {
		meta.EmptyMessage = appcrm.EmptyCallsMessage
	}
	h.SuccessWithMeta(c, toCallResponses(result.Calls), meta)
}
