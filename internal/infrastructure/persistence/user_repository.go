package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/persistence/models"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/persistence/tenant"
)

// GormUserRepository reads the users collaborators are matched against
type GormUserRepository struct {
	db *gorm.DB
}

// Ensure GormUserRepository implements UserDirectory
var _ integration.UserDirectory = (*GormUserRepository)(nil)

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindActiveByTenant lists the tenant's active users in a stable order, so
// the first-match rules of member resolution are deterministic.
func (r *GormUserRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.CandidateUser, error) {
	var userModels []models.UserModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("status = ?", models.UserStatusActive).
		Order("created_at ASC, id ASC").
		Find(&userModels).Error; err != nil {
		return nil, err
	}

	users := make([]integration.CandidateUser, 0, len(userModels))
	for i := range userModels {
		candidate := userModels[i].ToCandidate()
		if candidate.Name == "" {
			continue
		}
		users = append(users, candidate)
	}
	return users, nil
}
