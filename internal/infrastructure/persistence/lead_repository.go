package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/persistence/models"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/persistence/tenant"
)

// GormLeadRepository implements LeadRepository using GORM
type GormLeadRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Ensure GormLeadRepository implements LeadRepository
var _ integration.LeadRepository = (*GormLeadRepository)(nil)

// NewGormLeadRepository creates a new GormLeadRepository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db, now: time.Now}
}

// Upsert writes the lead keyed by (tenant_id, external_id).
//
// The insert uses ON CONFLICT DO NOTHING so that, under concurrent writers,
// exactly one caller observes created=true; the others fall through to the
// update, which never touches id or created_at.
func (r *GormLeadRepository) Upsert(ctx context.Context, lead *integration.Lead) (bool, error) {
	now := r.now().UTC()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	model := models.LeadModelFromDomain(lead)
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			created = true
			return nil
		}

		if err := tx.Model(&models.LeadModel{}).
			Scopes(tenant.ExternalKey(lead.TenantID, lead.ExternalID)).
			Updates(model.UpdateColumns()).Error; err != nil {
			return err
		}

		var stored models.LeadModel
		if err := tx.Select("id", "created_at", "assigned_user_id", "assigned_member_name").
			Scopes(tenant.ExternalKey(lead.TenantID, lead.ExternalID)).
			First(&stored).Error; err != nil {
			return err
		}
		lead.ID = stored.ID
		lead.CreatedAt = stored.CreatedAt
		if lead.KeepAssignment {
			lead.AssignedUserID = stored.AssignedUserID
			lead.AssignedMemberName = stored.AssignedMemberName
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// FindByExternalID finds the lead projected from a board card
func (r *GormLeadRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*integration.Lead, error) {
	var model models.LeadModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.ExternalKey(tenantID, externalID)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrLeadNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// DeleteByExternalID removes the lead for the key
func (r *GormLeadRepository) DeleteByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Scopes(tenant.ExternalKey(tenantID, externalID)).
		Delete(&models.LeadModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteBySource removes every lead of the tenant with the given source
func (r *GormLeadRepository) DeleteBySource(ctx context.Context, tenantID uuid.UUID, source integration.LeadSource) (int64, error) {
	result := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("source = ?", source).
		Delete(&models.LeadModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountByExternalID returns how many leads carry the key
func (r *GormLeadRepository) CountByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LeadModel{}).
		Scopes(tenant.ExternalKey(tenantID, externalID)).
		Count(&count).Error
	return count, err
}
