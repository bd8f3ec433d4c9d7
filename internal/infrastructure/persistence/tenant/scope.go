// Package tenant provides tenant scoping for GORM queries.
//
// Every board sync table is keyed by tenant_id. Repositories apply these
// scopes instead of writing the filter by hand:
//
//	db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Find(&leads)
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Column is the tenant column shared by all tables
const Column = "tenant_id"

// ErrTenantIDRequired is returned when a query is scoped to the nil tenant
var ErrTenantIDRequired = errors.New("tenant: tenant_id is required")

// Scope filters by tenant. A nil tenant fails the statement rather than
// matching every row.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(Column+" = ?", tenantID)
	}
}

// ExternalKey filters by the (tenant_id, external_id) unique key
func ExternalKey(tenantID uuid.UUID, externalID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return Scope(tenantID)(db).Where("external_id = ?", externalID)
	}
}
