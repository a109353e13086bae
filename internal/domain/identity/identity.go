package identity

import (
	"context"
	"slices"
	"strings"

	"github.com/saasfilter/backend/internal/domain/shared"
)

// Identity is an authenticated user with a role and an ordered set of tenant grants.
// It is immutable once issued; accessors return copies.
type Identity struct {
	id      int64
	name    string
	email   string
	role    Role
	tenants []TenantID
}

// Identity errors
var (
	ErrInvalidIdentity = shared.NewDomainError("INVALID_IDENTITY", "Identity has no tenant access")
	ErrUserNotFound    = shared.NewDomainError("USER_NOT_FOUND", "User not found (Try admin@test.com or agent@test.com)")
)

// NewIdentity validates and builds an identity. Duplicate tenants are dropped keeping the
// first occurrence. An identity without tenants is rejected with ErrInvalidIdentity.
func NewIdentity(id int64, name, email string, role Role, tenants []TenantID) (*Identity, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Identity name cannot be empty")
	}
	if !role.IsValid() {
		return nil, ErrUnknownRole
	}

	ordered := make([]TenantID, 0, len(tenants))
	for _, t := range tenants {
		if err := validateTenantID(string(t)); err != nil {
			return nil, err
		}
		if !slices.Contains(ordered, t) {
			ordered = append(ordered, t)
		}
	}
	if len(ordered) == 0 {
		return nil, ErrInvalidIdentity
	}

	return &Identity{
		id:      id,
		name:    name,
		email:   email,
		role:    role,
		tenants: ordered,
	}, nil
}

// ID returns the user id
func (i *Identity) ID() int64 { return i.id }

// Name returns the display name
func (i *Identity) Name() string { return i.name }

// Email returns the login email
func (i *Identity) Email() string { return i.email }

// Role returns the role
func (i *Identity) Role() Role { return i.role }

// Tenants returns a copy of the granted tenants in grant order
func (i *Identity) Tenants() []TenantID {
	return slices.Clone(i.tenants)
}

// HasTenant reports whether t is granted
func (i *Identity) HasTenant(t TenantID) bool {
	return slices.Contains(i.tenants, t)
}

// DefaultTenant returns the first granted tenant
func (i *Identity) DefaultTenant() (TenantID, error) {
	if len(i.tenants) == 0 {
		return "", ErrInvalidIdentity
	}
	return i.tenants[0], nil
}

// Clone returns a deep copy
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.tenants = slices.Clone(i.tenants)
	return &c
}

// Directory authenticates users by email
type Directory interface {
	Authenticate(ctx context.Context, email string) (*Identity, error)
}
