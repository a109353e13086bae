package persistence

import (
	"time"

	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/shopspring/decimal"
)

// TenantModel is a row of the tenants table
type TenantModel struct {
	ID        string `gorm:"primaryKey;size:50"`
	Name      string `gorm:"size:200;not null"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// LeadModel is a row of the leads table. Lead ids are unique per tenant.
type LeadModel struct {
	TenantID  string          `gorm:"primaryKey;size:50"`
	ID        int64           `gorm:"primaryKey;autoIncrement:false"`
	Name      string          `gorm:"size:200;not null"`
	Status    string          `gorm:"size:20;not null"`
	Value     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string {
	return "leads"
}

// ToDomain converts the row to a lead
func (m LeadModel) ToDomain() crm.Lead {
	return crm.Lead{ID: m.ID, Name: m.Name, Status: crm.LeadStatus(m.Status), Value: m.Value}
}

// LeadModelFromDomain builds a row for tenant
func LeadModelFromDomain(tenantID string, l crm.Lead) LeadModel {
	return LeadModel{ID: l.ID, TenantID: tenantID, Name: l.Name, Status: string(l.Status), Value: l.Value}
}

// CallModel is a row of the calls table. Call ids are unique per tenant.
type CallModel struct {
	TenantID        string `gorm:"primaryKey;size:50"`
	ID              int64  `gorm:"primaryKey;autoIncrement:false"`
	LeadRef         string `gorm:"size:200;not null"`
	DurationSeconds int64  `gorm:"not null"`
	Outcome         string `gorm:"size:200;not null"`
	CreatedAt       time.Time
}

// TableName returns the table name for GORM
func (CallModel) TableName() string {
	return "calls"
}

// ToDomain converts the row to a call
func (m CallModel) ToDomain() crm.Call {
	return crm.Call{
		ID:       m.ID,
		LeadRef:  m.LeadRef,
		Duration: time.Duration(m.DurationSeconds) * time.Second,
		Outcome:  m.Outcome,
	}
}

// CallModelFromDomain builds a row for tenant
func CallModelFromDomain(tenantID string, c crm.Call) CallModel {
	return CallModel{
		ID:              c.ID,
		TenantID:        tenantID,
		LeadRef:         c.LeadRef,
		DurationSeconds: int64(c.Duration / time.Second),
		Outcome:         c.Outcome,
	}
}

// AllModels lists the models for AutoMigrate
func AllModels() []any {
	return []any{&TenantModel{}, &LeadModel{}, &CallModel{}}
}
