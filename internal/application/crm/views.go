package crm

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/domain/shared"
)

// View messages
const (
	EmptyLeadsMessage = "No leads match filter."
	EmptyCallsMessage = "No calls recorded."
	SaveFailedMessage = "Failed to update status"
	SavedStaleMessage = "Status saved, but the active tenant changed before it was confirmed"
)

// ErrEditInProgress is returned when an edit is started or changed while one is saving
var ErrEditInProgress = shared.NewDomainError("EDIT_IN_PROGRESS", "Another edit is being saved")

// SaveError reports a failed status save. The view is back in its pre-edit state.
type SaveError struct {
	LeadID int64
	Err    error
}

func (e *SaveError) Error() string {
	if e.Committed() {
		return SavedStaleMessage
	}
	return SaveFailedMessage
}

// Committed reports whether the write landed even though the view could not apply it
func (e *SaveError) Committed() bool {
	var stale *StaleUpdateError
	return errors.As(e.Err, &stale)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Edit is the single in-progress lead edit of a view
type Edit struct {
	LeadID   int64
	Original crm.LeadStatus
	Draft    crm.LeadStatus
	Saving   bool
}

// LeadsView is the leads table of one session: rows of the active tenant, a status filter
// and at most one inline edit.
type LeadsView struct {
	service *Service
	store   *session.Store

	mu         sync.Mutex
	filter     crm.StatusFilter
	tenant     identity.TenantID
	generation uint64
	leads      []crm.Lead
	loaded     bool
	edit       *Edit
	lastError  string
}

// NewLeadsView creates a view bound to store
func NewLeadsView(service *Service, store *session.Store) *LeadsView {
	return &LeadsView{service: service, store: store}
}

// SetFilter sets the status filter from "All" or a status name
func (v *LeadsView) SetFilter(raw string) error {
	f, err := crm.ParseStatusFilter(raw)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
	return nil
}

// Filter returns the current filter
func (v *LeadsView) Filter() crm.StatusFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Refresh reloads the active tenant's leads. Rows of a previous tenant are dropped and any
// edit on them cancelled.
func (v *LeadsView) Refresh(ctx context.Context) error {
	res, err := v.service.Leads(ctx, v.store, crm.StatusFilter{})
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if res.Generation < v.generation {
		return session.ErrStaleTenant
	}
	if res.Tenant != v.tenant && v.edit != nil && !v.edit.Saving {
		v.edit = nil
	}
	v.tenant = res.Tenant
	v.generation = res.Generation
	v.leads = res.Leads
	v.loaded = true
	return nil
}

// Tenant returns the tenant the rows belong to
func (v *LeadsView) Tenant() identity.TenantID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tenant
}

// Rows returns the filtered rows. Nothing is returned once the session has moved on from
// the tenant and generation the rows were loaded under.
func (v *LeadsView) Rows() []crm.Lead {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked() {
		return nil
	}
	return v.filter.Apply(v.leads)
}

// EmptyMessage returns the empty state text, or "" when there are rows to show
func (v *LeadsView) EmptyMessage() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked() || len(v.filter.Apply(v.leads)) > 0 {
		return ""
	}
	return EmptyLeadsMessage
}

// LastError returns the message of the last failed save, cleared by the next edit
func (v *LeadsView) LastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastError
}

// Editing returns the in-progress edit
func (v *LeadsView) Editing() (Edit, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil || !v.currentLocked() {
		return Edit{}, false
	}
	return *v.edit, true
}

// CanEdit reports whether the session may edit lead status
func (v *LeadsView) CanEdit() bool {
	return identity.CanAccess(v.store.CurrentState().Identity, identity.RoleAdmin)
}

// StartEdit opens an edit of leadID with the draft at its current status
func (v *LeadsView) StartEdit(leadID int64) error {
	if !v.CanEdit() {
		return shared.ErrForbidden
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit != nil && v.edit.Saving {
		return ErrEditInProgress
	}
	if !v.currentLocked() {
		return session.ErrStaleTenant
	}
	i := slices.IndexFunc(v.leads, func(l crm.Lead) bool { return l.ID == leadID })
	if i < 0 {
		return crm.ErrLeadNotFound
	}
	v.edit = &Edit{
		LeadID:   leadID,
		Original: v.leads[i].Status,
		Draft:    v.leads[i].Status,
	}
	v.lastError = ""
	return nil
}

// SetDraft changes the draft status of the open edit
func (v *LeadsView) SetDraft(raw string) error {
	status, err := crm.ParseLeadStatus(raw)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil {
		return shared.ErrInvalidState
	}
	if v.edit.Saving {
		return ErrEditInProgress
	}
	v.edit.Draft = status
	return nil
}

// Cancel discards the open edit. A save already sent still lands in the rows when confirmed.
func (v *LeadsView) Cancel() {
	v.mu.Lock()
	v.edit = nil
	v.mu.Unlock()
}

// Save sends the draft. On success the row is replaced by the confirmed lead; on failure
// the rows stay as they were, the edit is closed and a *SaveError is returned.
func (v *LeadsView) Save(ctx context.Context) (*crm.Lead, error) {
	v.mu.Lock()
	if v.edit == nil {
		v.mu.Unlock()
		return nil, shared.ErrInvalidState
	}
	if v.edit.Saving {
		v.mu.Unlock()
		return nil, ErrEditInProgress
	}
	v.edit.Saving = true
	edit := v.edit
	leadID, draft := edit.LeadID, edit.Draft
	v.mu.Unlock()

	lead, err := v.service.UpdateLeadStatus(ctx, v.store, leadID, draft)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == edit {
		v.edit = nil
	}
	if err != nil {
		saveErr := &SaveError{LeadID: leadID, Err: err}
		v.lastError = saveErr.Error()
		return nil, saveErr
	}

	i := slices.IndexFunc(v.leads, func(l crm.Lead) bool { return l.ID == lead.ID })
	if i >= 0 {
		leads := slices.Clone(v.leads)
		leads[i] = *lead
		v.leads = leads
	}
	return lead, nil
}

// EventTypes returns the session events the view follows
func (v *LeadsView) EventTypes() []string {
	return slices.Clone(sessionChanges)
}

// Handle drops rows and the open edit when this view's session logs in again, changes
// tenant or logs out
func (v *LeadsView) Handle(_ context.Context, event shared.DomainEvent) error {
	if !ownEvent(v.store, event) {
		return nil
	}
	v.mu.Lock()
	v.edit = nil
	v.leads = nil
	v.loaded = false
	v.tenant = ""
	v.mu.Unlock()
	return nil
}

func (v *LeadsView) currentLocked() bool {
	t, ok := v.store.Ticket()
	return ok && v.loaded && t.Tenant == v.tenant && t.Generation == v.generation
}

// CallsView is the call log of one session
type CallsView struct {
	service *Service
	store   *session.Store

	mu         sync.Mutex
	tenant     identity.TenantID
	generation uint64
	calls      []crm.Call
	loaded     bool
}

// NewCallsView creates a view bound to store
func NewCallsView(service *Service, store *session.Store) *CallsView {
	return &CallsView{service: service, store: store}
}

// Refresh reloads the active tenant's calls
func (v *CallsView) Refresh(ctx context.Context) error {
	res, err := v.service.Calls(ctx, v.store)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if res.Generation < v.generation {
		return session.ErrStaleTenant
	}
	v.tenant = res.Tenant
	v.generation = res.Generation
	v.calls = res.Calls
	v.loaded = true
	return nil
}

// Tenant returns the tenant the rows belong to
func (v *CallsView) Tenant() identity.TenantID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tenant
}

// Rows returns the calls, or nothing once the session has moved on
func (v *CallsView) Rows() []crm.Call {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked() {
		return nil
	}
	return slices.Clone(v.calls)
}

// EmptyMessage returns the empty state text, or "" when there are rows to show
func (v *CallsView) EmptyMessage() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked() || len(v.calls) > 0 {
		return ""
	}
	return EmptyCallsMessage
}

// EventTypes returns the session events the view follows
func (v *CallsView) EventTypes() []string {
	return slices.Clone(sessionChanges)
}

// Handle drops rows when this view's session logs in again, changes tenant or logs out
func (v *CallsView) Handle(_ context.Context, event shared.DomainEvent) error {
	if !ownEvent(v.store, event) {
		return nil
	}
	v.mu.Lock()
	v.calls = nil
	v.loaded = false
	v.tenant = ""
	v.mu.Unlock()
	return nil
}

func (v *CallsView) currentLocked() bool {
	t, ok := v.store.Ticket()
	return ok && v.loaded && t.Tenant == v.tenant && t.Generation == v.generation
}

var sessionChanges = []string{
	session.EventTypeLoggedIn,
	session.EventTypeTenantSwitched,
	session.EventTypeLoggedOut,
}

func ownEvent(store *session.Store, event shared.DomainEvent) bool {
	switch ev := event.(type) {
	case *session.LoggedInEvent:
		return ev.SessionID == store.ID()
	case *session.TenantSwitchedEvent:
		return ev.SessionID == store.ID()
	case *session.LoggedOutEvent:
		return ev.SessionID == store.ID()
	}
	return false
}

var (
	_ shared.EventHandler = (*LeadsView)(nil)
	_ shared.EventHandler = (*CallsView)(nil)
)
