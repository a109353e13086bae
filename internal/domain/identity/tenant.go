package identity

import (
	"github.com/saasfilter/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TenantID identifies an isolated data partition (organization)
type TenantID string

// String returns the raw tenant id
func (t TenantID) String() string {
	return string(t)
}

// Label returns the display form of the tenant, e.g. "ORG_A"
func (t TenantID) Label() string {
	return cases.Upper(language.Und).String(string(t))
}

// IsZero reports whether the id is empty
func (t TenantID) IsZero() bool {
	return t == ""
}

// ParseTenantID validates a raw tenant id
func ParseTenantID(raw string) (TenantID, error) {
	if err := validateTenantID(raw); err != nil {
		return "", err
	}
	return TenantID(raw), nil
}

func validateTenantID(raw string) error {
	if raw == "" {
		return shared.NewDomainError("INVALID_TENANT", "Tenant id cannot be empty")
	}
	if len(raw) > 50 {
		return shared.NewDomainError("INVALID_TENANT", "Tenant id cannot exceed 50 characters")
	}
	for _, r := range raw {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.NewDomainError("INVALID_TENANT", "Tenant id can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}
