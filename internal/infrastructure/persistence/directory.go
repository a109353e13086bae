package persistence

import (
	"context"
	"strings"

	"github.com/saasfilter/backend/internal/domain/identity"
)

// MemoryDirectory authenticates demo accounts by email substring. No credential is
// checked: the first entry whose match string occurs in the email wins.
type MemoryDirectory struct {
	entries []DirectoryEntry
	latency Latency
}

// NewMemoryDirectory creates a directory over entries
func NewMemoryDirectory(entries []DirectoryEntry, latency Latency) *MemoryDirectory {
	return &MemoryDirectory{entries: cloneEntries(entries), latency: latency}
}

// Authenticate implements identity.Directory
func (d *MemoryDirectory) Authenticate(ctx context.Context, email string) (*identity.Identity, error) {
	if err := wait(ctx, d.latency.Login); err != nil {
		return nil, err
	}
	for _, e := range d.entries {
		if e.Match != "" && strings.Contains(email, e.Match) {
			return identity.NewIdentity(e.ID, e.Name, email, e.Role, e.Tenants)
		}
	}
	return nil, identity.ErrUserNotFound
}

func cloneEntries(entries []DirectoryEntry) []DirectoryEntry {
	out := make([]DirectoryEntry, len(entries))
	for i, e := range entries {
		e.Tenants = append([]identity.TenantID(nil), e.Tenants...)
		out[i] = e
	}
	return out
}

var _ identity.Directory = (*MemoryDirectory)(nil)
