package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract checks the behaviour every crm.Repository must share.
// newRepo must return a repository loaded with DemoDataset.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) crm.Repository) {
	ctx := context.Background()

	t.Run("org_a leads", func(t *testing.T) {
		leads, err := newRepo(t).FetchLeads(ctx, "org_a")
		require.NoError(t, err)
		require.Len(t, leads, 2)
		assert.Equal(t, "Acme Corp", leads[0].Name)
		assert.Equal(t, crm.LeadStatusNew, leads[0].Status)
		assert.True(t, decimal.NewFromInt(5000).Equal(leads[0].Value))
		assert.Equal(t, "Globex", leads[1].Name)
		assert.Equal(t, crm.LeadStatusClosed, leads[1].Status)
	})

	t.Run("org_b sees only its own lead", func(t *testing.T) {
		leads, err := newRepo(t).FetchLeads(ctx, "org_b")
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, int64(3), leads[0].ID)
		assert.Equal(t, "Soylent Corp", leads[0].Name)
		assert.Equal(t, crm.LeadStatusNegotiation, leads[0].Status)
	})

	t.Run("calls", func(t *testing.T) {
		repo := newRepo(t)
		calls, err := repo.FetchCalls(ctx, "org_a")
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "12m - Meeting Set", calls[0].Summary())
		assert.Equal(t, "Acme Corp", calls[0].LeadRef)

		calls, err = repo.FetchCalls(ctx, "org_b")
		require.NoError(t, err)
		assert.NotNil(t, calls)
		assert.Empty(t, calls)
	})

	t.Run("unknown tenant reads empty", func(t *testing.T) {
		repo := newRepo(t)
		for _, tenant := range []identity.TenantID{"org_z", ""} {
			leads, err := repo.FetchLeads(ctx, tenant)
			require.NoError(t, err)
			assert.Empty(t, leads)

			calls, err := repo.FetchCalls(ctx, tenant)
			require.NoError(t, err)
			assert.Empty(t, calls)
		}
	})

	t.Run("update is visible and isolated", func(t *testing.T) {
		repo := newRepo(t)
		updated, err := repo.UpdateLeadStatus(ctx, "org_a", 1, crm.LeadStatusClosed)
		require.NoError(t, err)
		assert.Equal(t, crm.LeadStatusClosed, updated.Status)
		assert.Equal(t, "Acme Corp", updated.Name)

		leads, err := repo.FetchLeads(ctx, "org_a")
		require.NoError(t, err)
		assert.Equal(t, crm.LeadStatusClosed, leads[0].Status)
		assert.Equal(t, crm.LeadStatusClosed, leads[1].Status)
		assert.Equal(t, "Globex", leads[1].Name)

		other, err := repo.FetchLeads(ctx, "org_b")
		require.NoError(t, err)
		assert.Equal(t, crm.LeadStatusNegotiation, other[0].Status)
	})

	t.Run("update is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		first, err := repo.UpdateLeadStatus(ctx, "org_a", 1, crm.LeadStatusNegotiation)
		require.NoError(t, err)
		second, err := repo.UpdateLeadStatus(ctx, "org_a", 1, crm.LeadStatusNegotiation)
		require.NoError(t, err)
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("lead from another tenant is not found", func(t *testing.T) {
		_, err := newRepo(t).UpdateLeadStatus(ctx, "org_a", 3, crm.LeadStatusClosed)
		assert.ErrorIs(t, err, crm.ErrLeadNotFound)
	})

	t.Run("unknown tenant update fails", func(t *testing.T) {
		_, err := newRepo(t).UpdateLeadStatus(ctx, "org_z", 1, crm.LeadStatusClosed)
		assert.ErrorIs(t, err, crm.ErrTenantNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := newRepo(t).UpdateLeadStatus(ctx, "org_a", 1, crm.LeadStatus("Won"))
		assert.ErrorIs(t, err, crm.ErrInvalidStatus)
	})

	t.Run("returned slices do not alias storage", func(t *testing.T) {
		repo := newRepo(t)
		leads, err := repo.FetchLeads(ctx, "org_a")
		require.NoError(t, err)
		leads[0].Status = crm.LeadStatusClosed
		leads[0].Name = "mutated"

		again, err := repo.FetchLeads(ctx, "org_a")
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", again[0].Name)
		assert.Equal(t, crm.LeadStatusNew, again[0].Status)
	})

	t.Run("concurrent updates of one lead", func(t *testing.T) {
		repo := newRepo(t)
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.UpdateLeadStatus(ctx, "org_a", 2, crm.LeadStatusNew)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		leads, err := repo.FetchLeads(ctx, "org_a")
		require.NoError(t, err)
		assert.Equal(t, crm.LeadStatusNew, leads[1].Status)
	})
}

// overlappingIDsDataset gives both tenants a lead and a call with the same ids
func overlappingIDsDataset() Dataset {
	return Dataset{
		"org_a": {
			Name:  "Organization A",
			Leads: []crm.Lead{{ID: 1, Name: "Acme Corp", Status: crm.LeadStatusNew, Value: decimal.NewFromInt(5000)}},
			Calls: []crm.Call{{ID: 101, LeadRef: "Acme Corp", Outcome: "Meeting Set"}},
		},
		"org_b": {
			Name:  "Organization B",
			Leads: []crm.Lead{{ID: 1, Name: "Soylent Corp", Status: crm.LeadStatusNegotiation, Value: decimal.NewFromInt(45000)}},
			Calls: []crm.Call{{ID: 101, LeadRef: "Soylent Corp", Outcome: "Voicemail"}},
		},
	}
}

// runOverlappingIDsContract checks that ids are scoped to their tenant.
// repo must be loaded with overlappingIDsDataset.
func runOverlappingIDsContract(t *testing.T, repo crm.Repository) {
	ctx := context.Background()

	updated, err := repo.UpdateLeadStatus(ctx, "org_b", 1, crm.LeadStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, "Soylent Corp", updated.Name)
	assert.Equal(t, crm.LeadStatusClosed, updated.Status)

	leads, err := repo.FetchLeads(ctx, "org_a")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Acme Corp", leads[0].Name)
	assert.Equal(t, crm.LeadStatusNew, leads[0].Status)

	calls, err := repo.FetchCalls(ctx, "org_b")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "Voicemail", calls[0].Outcome)
}
