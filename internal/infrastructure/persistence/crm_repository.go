package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormCRMRepository implements crm.Repository using GORM
type GormCRMRepository struct {
	db *tenant.TenantDB
}

// NewGormCRMRepository creates a new GormCRMRepository
func NewGormCRMRepository(db *gorm.DB) *GormCRMRepository {
	return &GormCRMRepository{db: tenant.NewTenantDB(db)}
}

// FetchLeads returns the tenant's leads ordered by id
func (r *GormCRMRepository) FetchLeads(ctx context.Context, tenantID identity.TenantID) ([]crm.Lead, error) {
	if tenantID.IsZero() {
		return []crm.Lead{}, nil
	}
	var rows []LeadModel
	if err := r.db.WithTenant(ctx, tenantID).Order("id").Find(&rows).Error; err != nil {
		if errors.Is(err, tenant.ErrInvalidTenantID) {
			return []crm.Lead{}, nil
		}
		return nil, fmt.Errorf("fetch leads: %w", err)
	}
	leads := make([]crm.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, row.ToDomain())
	}
	return leads, nil
}

// FetchCalls returns the tenant's calls ordered by id
func (r *GormCRMRepository) FetchCalls(ctx context.Context, tenantID identity.TenantID) ([]crm.Call, error) {
	if tenantID.IsZero() {
		return []crm.Call{}, nil
	}
	var rows []CallModel
	if err := r.db.WithTenant(ctx, tenantID).Order("id").Find(&rows).Error; err != nil {
		if errors.Is(err, tenant.ErrInvalidTenantID) {
			return []crm.Call{}, nil
		}
		return nil, fmt.Errorf("fetch calls: %w", err)
	}
	calls := make([]crm.Call, 0, len(rows))
	for _, row := range rows {
		calls = append(calls, row.ToDomain())
	}
	return calls, nil
}

// UpdateLeadStatus sets the status of one lead inside the tenant partition.
// The row is only written when the status actually changes.
func (r *GormCRMRepository) UpdateLeadStatus(ctx context.Context, tenantID identity.TenantID, leadID int64, status crm.LeadStatus) (crm.Lead, error) {
	if !status.IsValid() {
		return crm.Lead{}, crm.ErrInvalidStatus
	}
	if tenantID.IsZero() {
		return crm.Lead{}, crm.ErrTenantNotFound
	}
	exists, err := r.tenantExists(ctx, tenantID)
	if err != nil {
		return crm.Lead{}, err
	}
	if !exists {
		return crm.Lead{}, crm.ErrTenantNotFound
	}

	var row LeadModel
	err = r.db.Transaction(ctx, tenantID, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", leadID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return crm.ErrLeadNotFound
			}
			return err
		}
		if row.Status == string(status) {
			return nil
		}
		if err := tx.Model(&LeadModel{}).Where("id = ?", leadID).Update("status", string(status)).Error; err != nil {
			return err
		}
		row.Status = string(status)
		return nil
	})
	if err != nil {
		if errors.Is(err, crm.ErrLeadNotFound) {
			return crm.Lead{}, err
		}
		return crm.Lead{}, fmt.Errorf("update lead status: %w", err)
	}
	return row.ToDomain(), nil
}

func (r *GormCRMRepository) tenantExists(ctx context.Context, tenantID identity.TenantID) (bool, error) {
	var count int64
	if err := r.db.Unscoped().WithContext(ctx).Model(&TenantModel{}).Where("id = ?", tenantID.String()).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check tenant: %w", err)
	}
	return count > 0, nil
}

var _ crm.Repository = (*GormCRMRepository)(nil)
