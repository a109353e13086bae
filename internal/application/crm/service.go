// Package crm serves the active tenant's leads and calls to a session and owns the
// dashboard views built on them.
package crm

import (
	"context"
	"fmt"

	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Stale result resources
const (
	ResourceLeads      = "leads"
	ResourceCalls      = "calls"
	ResourceLeadUpdate = "lead_update"
)

// Recorder receives lead update and stale result counts
type Recorder interface {
	RecordLeadUpdate(ctx context.Context, tenant, outcome string)
	RecordStaleResult(ctx context.Context, resource string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLeadUpdate(context.Context, string, string) {}
func (nopRecorder) RecordStaleResult(context.Context, string) {}

// LeadsResult is the active tenant's leads as of Generation
type LeadsResult struct {
	Tenant     identity.TenantID
	Generation uint64
	Filter     crm.StatusFilter
	Leads      []crm.Lead
	Total      int
}

// CallsResult is the active tenant's calls as of Generation
type CallsResult struct {
	Tenant     identity.TenantID
	Generation uint64
	Calls      []crm.Call
}

// Service reads and writes CRM data for the tenant a session has active. The tenant is
// always taken from the store, never from the caller.
type Service struct {
	repo     crm.Repository
	inflight singleflight.Group
	recorder Recorder
	logger   *zap.Logger
}

// NewService creates a new Service. recorder may be nil.
func NewService(repo crm.Repository, recorder Recorder, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
	}
}

// Leads fetches the active tenant's leads and applies filter. A result that arrives after
// the session switched tenant or logged out is discarded with session.ErrStaleTenant.
func (s *Service) Leads(ctx context.Context, store *session.Store, filter crm.StatusFilter) (result *LeadsResult, err error) {
	ticket, ok := store.Ticket()
	if !ok {
		return nil, shared.ErrUnauthorized
	}

	ctx, span := telemetry.StartSpan(ctx, "crm.Leads",
		telemetry.AttrTenantID.String(ticket.Tenant.String()),
		attribute.String("filter", filter.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	leads, err := s.repo.FetchLeads(ctx, ticket.Tenant)
	if err != nil {
		return nil, err
	}
	if err := s.checkCurrent(ctx, store, ticket, ResourceLeads); err != nil {
		return nil, err
	}

	return &LeadsResult{
		Tenant:     ticket.Tenant,
		Generation: ticket.Generation,
		Filter:     filter,
		Leads:      filter.Apply(leads),
		Total:      len(leads),
	}, nil
}

// Calls fetches the active tenant's calls with the same stale guard as Leads
func (s *Service) Calls(ctx context.Context, store *session.Store) (result *CallsResult, err error) {
	ticket, ok := store.Ticket()
	if !ok {
		return nil, shared.ErrUnauthorized
	}

	ctx, span := telemetry.StartSpan(ctx, "crm.Calls",
		telemetry.AttrTenantID.String(ticket.Tenant.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	calls, err := s.repo.FetchCalls(ctx, ticket.Tenant)
	if err != nil {
		return nil, err
	}
	if err := s.checkCurrent(ctx, store, ticket, ResourceCalls); err != nil {
		return nil, err
	}

	return &CallsResult{
		Tenant:     ticket.Tenant,
		Generation: ticket.Generation,
		Calls:      calls,
	}, nil
}

// UpdateLeadStatus changes a lead's status under the active tenant. Only identities passing
// the admin gate may call it. Concurrent calls for the same lead share one write and all
// receive its result.
func (s *Service) UpdateLeadStatus(ctx context.Context, store *session.Store, leadID int64, status crm.LeadStatus) (lead *crm.Lead, err error) {
	st := store.CurrentState()
	if !st.Authenticated() {
		return nil, shared.ErrUnauthorized
	}
	if !identity.CanAccess(st.Identity, identity.RoleAdmin) {
		return nil, shared.ErrForbidden
	}
	if !status.IsValid() {
		return nil, crm.ErrInvalidStatus
	}
	ticket := session.Ticket{Tenant: st.ActiveTenant, Generation: st.Generation}

	ctx, span := telemetry.StartSpan(ctx, "crm.UpdateLeadStatus",
		telemetry.AttrTenantID.String(ticket.Tenant.String()),
		attribute.Int64("lead_id", leadID),
		attribute.String("status", status.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	key := fmt.Sprintf("%s/%d", ticket.Tenant, leadID)
	ch := s.inflight.DoChan(key, func() (any, error) {
		// the write outlives any single waiter
		return s.repo.UpdateLeadStatus(context.WithoutCancel(ctx), ticket.Tenant, leadID, status)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		s.recorder.RecordLeadUpdate(ctx, ticket.Tenant.String(), outcome(res.Err))
		s.logger.Warn("Lead status update failed",
			zap.String("tenant_id", ticket.Tenant.String()),
			zap.Int64("lead_id", leadID),
			zap.Error(res.Err),
		)
		return nil, res.Err
	}
	updated := res.Val.(crm.Lead)
	s.recorder.RecordLeadUpdate(ctx, ticket.Tenant.String(), "ok")
	span.SetAttributes(attribute.Bool("shared", res.Shared))

	if err := s.checkCurrent(ctx, store, ticket, ResourceLeadUpdate); err != nil {
		s.logger.Info("Lead status applied under a tenant that is no longer active",
			zap.String("tenant_id", ticket.Tenant.String()),
			zap.Int64("lead_id", leadID),
		)
		return nil, &StaleUpdateError{Tenant: ticket.Tenant, Lead: updated}
	}
	return &updated, nil
}

// StaleUpdateError reports a status write that was committed after the session had moved
// to another tenant or identity. Lead is the confirmed row of Tenant. It matches
// session.ErrStaleTenant.
type StaleUpdateError struct {
	Tenant identity.TenantID
	Lead   crm.Lead
}

func (e *StaleUpdateError) Error() string {
	return fmt.Sprintf("lead %d set to %s in %s, which is no longer the active tenant",
		e.Lead.ID, e.Lead.Status, e.Tenant)
}

func (e *StaleUpdateError) Unwrap() error {
	return session.ErrStaleTenant
}

func (s *Service) checkCurrent(ctx context.Context, store *session.Store, ticket session.Ticket, resource string) error {
	if err := store.Validate(ticket); err != nil {
		s.recorder.RecordStaleResult(ctx, resource)
		s.logger.Debug("Discarded stale result",
			zap.String("resource", resource),
			zap.String("tenant_id", ticket.Tenant.String()),
			zap.Uint64("generation", ticket.Generation),
		)
		return err
	}
	return nil
}

func outcome(err error) string {
	if code := shared.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
