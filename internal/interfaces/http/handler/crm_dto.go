package handler

import (
	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/shopspring/decimal"
)

// ListLeadsQuery filters the lead list
type ListLeadsQuery struct {
	Status string `form:"status" binding:"omitempty,lead_filter"`
}

// LeadURI identifies a lead in the path
type LeadURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// UpdateLeadStatusRequest represents the request body for a status change
type UpdateLeadStatusRequest struct {
	Status string `json:"status" binding:"required,lead_status"`
}

// LeadResponse is a lead row
type LeadResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Value      decimal.Decimal `json:"value"`
	ValueLabel string          `json:"value_label"`
}

// CallResponse is a call row
type CallResponse struct {
	ID              int64  `json:"id"`
	LeadRef         string `json:"lead_ref"`
	DurationSeconds int64  `json:"duration_seconds"`
	Outcome         string `json:"outcome"`
	Summary         string `json:"summary"`
}

func toLeadResponse(l crm.Lead) LeadResponse {
	return LeadResponse{
		ID:         l.ID,
		Name:       l.Name,
		Status:     l.Status.String(),
		Value:      l.Value,
		ValueLabel: l.ValueLabel(),
	}
}

func toLeadResponses(leads []crm.Lead) []LeadResponse {
	out := make([]LeadResponse, len(leads))
	for i, l := range leads {
		out[i] = toLeadResponse(l)
	}
	return out
}

func toCallResponses(calls []crm.Call) []CallResponse {
	out := make([]CallResponse, len(calls))
	for i, c := range calls {
		out[i] = CallResponse{
			ID:              c.ID,
			LeadRef:         c.LeadRef,
			DurationSeconds: int64(c.Duration.Seconds()),
			Outcome:         c.Outcome,
			Summary:         c.Summary(),
		}
	}
	return out
}
