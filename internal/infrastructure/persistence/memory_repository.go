package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/identity"
)

// MemoryRepository keeps tenant partitions in process memory.
// Stored slices are never mutated in place: an update swaps in a fresh slice, so values
// handed out earlier stay untouched.
type MemoryRepository struct {
	latency Latency

	mu   sync.RWMutex
	data Dataset
}

// NewMemoryRepository creates a repository holding a copy of data
func NewMemoryRepository(data Dataset, latency Latency) *MemoryRepository {
	return &MemoryRepository{latency: latency, data: data.Clone()}
}

// FetchLeads implements crm.Repository
func (r *MemoryRepository) FetchLeads(ctx context.Context, tenant identity.TenantID) ([]crm.Lead, error) {
	if err := wait(ctx, r.latency.Fetch); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]crm.Lead{}, r.data[tenant].Leads...), nil
}

// FetchCalls implements crm.Repository
func (r *MemoryRepository) FetchCalls(ctx context.Context, tenant identity.TenantID) ([]crm.Call, error) {
	if err := wait(ctx, r.latency.Fetch); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]crm.Call{}, r.data[tenant].Calls...), nil
}

// UpdateLeadStatus implements crm.Repository
func (r *MemoryRepository) UpdateLeadStatus(ctx context.Context, tenant identity.TenantID, leadID int64, status crm.LeadStatus) (crm.Lead, error) {
	if !status.IsValid() {
		return crm.Lead{}, crm.ErrInvalidStatus
	}
	if err := wait(ctx, r.latency.Update); err != nil {
		return crm.Lead{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	part, ok := r.data[tenant]
	if !ok {
		return crm.Lead{}, crm.ErrTenantNotFound
	}
	idx := slices.IndexFunc(part.Leads, func(l crm.Lead) bool { return l.ID == leadID })
	if idx < 0 {
		return crm.Lead{}, crm.ErrLeadNotFound
	}
	if part.Leads[idx].Status == status {
		return part.Leads[idx], nil
	}

	leads := slices.Clone(part.Leads)
	leads[idx] = leads[idx].WithStatus(status)
	part.Leads = leads
	r.data[tenant] = part
	return leads[idx], nil
}

// Tenants returns the known tenants in sorted order
func (r *MemoryRepository) Tenants() []identity.TenantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]identity.TenantID, 0, len(r.data))
	for t := range r.data {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

var _ crm.Repository = (*MemoryRepository)(nil)
