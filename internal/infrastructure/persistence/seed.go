package persistence

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Partition is one tenant's data
type Partition struct {
	Name  string
	Leads []crm.Lead
	Calls []crm.Call
}

// Dataset maps tenants to their partitions
type Dataset map[identity.TenantID]Partition

// Clone returns a deep copy of the dataset
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	for t, p := range d {
		out[t] = Partition{
			Name:  p.Name,
			Leads: append([]crm.Lead(nil), p.Leads...),
			Calls: append([]crm.Call(nil), p.Calls...),
		}
	}
	return out
}

// DemoDataset returns the demo tenants org_a and org_b
func DemoDataset() Dataset {
	return Dataset{
		"org_a": {
			Name: "Organization A",
			Leads: []crm.Lead{
				{ID: 1, Name: "Acme Corp", Status: crm.LeadStatusNew, Value: decimal.NewFromInt(5000)},
				{ID: 2, Name: "Globex", Status: crm.LeadStatusClosed, Value: decimal.NewFromInt(12000)},
			},
			Calls: []crm.Call{
				{ID: 101, LeadRef: "Acme Corp", Duration: 12 * time.Minute, Outcome: "Meeting Set"},
			},
		},
		"org_b": {
			Name: "Organization B",
			Leads: []crm.Lead{
				{ID: 3, Name: "Soylent Corp", Status: crm.LeadStatusNegotiation, Value: decimal.NewFromInt(45000)},
			},
		},
	}
}

// DirectoryEntry is a demo account matched by an email substring
type DirectoryEntry struct {
	Match   string
	ID      int64
	Name    string
	Role    identity.Role
	Tenants []identity.TenantID
}

// DemoDirectory returns the demo accounts in match order
func DemoDirectory() []DirectoryEntry {
	return []DirectoryEntry{
		{Match: "admin", ID: 1, Name: "Alice Admin", Role: identity.RoleAdmin, Tenants: []identity.TenantID{"org_a", "org_b"}},
		{Match: "agent", ID: 2, Name: "Bob Agent", Role: identity.RoleAgent, Tenants: []identity.TenantID{"org_a"}},
	}
}

// Seed inserts data when the tenants table is empty and reports whether it did
func Seed(ctx context.Context, db *gorm.DB, data Dataset) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&TenantModel{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count tenants: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	tenants := make([]identity.TenantID, 0, len(data))
	for t := range data {
		tenants = append(tenants, t)
	}
	slices.Sort(tenants)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tenants {
			part := data[t]
			if err := tx.Create(&TenantModel{ID: t.String(), Name: part.Name}).Error; err != nil {
				return err
			}
			for _, l := range part.Leads {
				row := LeadModelFromDomain(t.String(), l)
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			for _, c := range part.Calls {
				row := CallModelFromDomain(t.String(), c)
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed database: %w", err)
	}
	return true, nil
}
