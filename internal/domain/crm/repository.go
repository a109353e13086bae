package crm

import (
	"context"

	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
)

// Data access errors
var (
	ErrLeadNotFound   = shared.NewDomainError("LEAD_NOT_FOUND", "Lead not found")
	ErrTenantNotFound = shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")
)

// Repository is the tenant-scoped data access contract. Every call names its tenant
// explicitly; implementations never infer it.
//
// FetchLeads and FetchCalls return an empty slice for an unknown tenant.
// UpdateLeadStatus returns ErrTenantNotFound for an unknown tenant and ErrLeadNotFound
// when the lead is not in that tenant's partition. Re-applying the current status
// succeeds. Returned values never alias stored records.
type Repository interface {
	FetchLeads(ctx context.Context, tenant identity.TenantID) ([]Lead, error)
	FetchCalls(ctx context.Context, tenant identity.TenantID) ([]Call, error)
	UpdateLeadStatus(ctx context.Context, tenant identity.TenantID, leadID int64, status LeadStatus) (Lead, error)
}
