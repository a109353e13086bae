// Package tenant scopes GORM queries to a single tenant partition.
//
// Every scoped query names its tenant explicitly; nothing is inferred from the request
// context.
//
//	db := tenant.NewTenantDB(gormDB)
//	db.WithTenant(ctx, "org_a").Find(&leads) // WHERE tenant_id = 'org_a'
package tenant

import (
	"context"
	"errors"

	"github.com/saasfilter/backend/internal/domain/identity"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when a scoped query is built without a tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// ErrInvalidTenantID is returned when the tenant id is malformed
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// TenantScope filters a query on the tenant_id column. It does not check tenantID.
func TenantScope(tenantID identity.TenantID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID.String())
	}
}

// TenantDB wraps GORM DB with tenant scoping
type TenantDB struct {
	db *gorm.DB
}

// NewTenantDB creates a TenantDB over tables carrying a tenant_id column
func NewTenantDB(db *gorm.DB) *TenantDB {
	return &TenantDB{db: db}
}

// WithTenant returns a DB bound to ctx and filtered to tenantID.
// An empty or malformed tenant yields a DB that errors on execution.
func (t *TenantDB) WithTenant(ctx context.Context, tenantID identity.TenantID) *gorm.DB {
	return t.scope(t.db.WithContext(ctx), tenantID)
}

// Transaction runs fn in a transaction whose queries are filtered to tenantID.
// The handle passed to fn is a new session and may be reused for several statements.
func (t *TenantDB) Transaction(ctx context.Context, tenantID identity.TenantID, fn func(tx *gorm.DB) error) error {
	if err := check(tenantID); err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := TenantScope(tenantID)(tx).Session(&gorm.Session{})
		return fn(scoped)
	})
}

// Unscoped returns the underlying DB without any tenant scoping.
// Only seeding, migrations and tenant existence checks should use it.
func (t *TenantDB) Unscoped() *gorm.DB {
	return t.db
}

func (t *TenantDB) scope(db *gorm.DB, tenantID identity.TenantID) *gorm.DB {
	if err := check(tenantID); err != nil {
		_ = db.AddError(err)
		return db
	}
	// applied now so the tenant condition leads the WHERE clause
	return TenantScope(tenantID)(db)
}

func check(tenantID identity.TenantID) error {
	if tenantID.IsZero() {
		return ErrTenantIDRequired
	}
	if _, err := identity.ParseTenantID(tenantID.String()); err != nil {
		return ErrInvalidTenantID
	}
	return nil
}
