package identity

import (
	"strings"

	"github.com/saasfilter/backend/internal/domain/shared"
)

// Role is a tagged role enumeration. Roles do not form a hierarchy.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// RoleDefinition describes the capabilities attached to a role
type RoleDefinition struct {
	Role        Role
	DisplayName string
	// Override grants every role-gated capability regardless of the required role.
	Override bool
}

var roleDefinitions = map[Role]RoleDefinition{
	RoleAdmin: {Role: RoleAdmin, DisplayName: "Administrator", Override: true},
	RoleAgent: {Role: RoleAgent, DisplayName: "Agent"},
}

// ErrUnknownRole is returned when parsing an unrecognized role
var ErrUnknownRole = shared.NewDomainError("INVALID_ROLE", "Unknown role")

// ParseRole parses a role name (case-insensitive)
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleDefinitions[r]; !ok {
		return "", ErrUnknownRole
	}
	return r, nil
}

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the role is defined
func (r Role) IsValid() bool {
	_, ok := roleDefinitions[r]
	return ok
}

// Definition returns the role's definition; undefined roles get a zero-capability definition
func (r Role) Definition() RoleDefinition {
	if def, ok := roleDefinitions[r]; ok {
		return def
	}
	return RoleDefinition{Role: r, DisplayName: string(r)}
}

// HasOverride reports whether the role bypasses role gates
func (r Role) HasOverride() bool {
	return r.Definition().Override
}

// CanAccess is the role gate: the identity's role must equal required, or carry the
// override capability. A nil identity never has access.
func CanAccess(id *Identity, required Role) bool {
	if id == nil {
		return false
	}
	return id.role == required || id.role.HasOverride()
}
