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

// GormSyncConfigRepository implements SyncConfigRepository using GORM
type GormSyncConfigRepository struct {
	db *gorm.DB
}

// Ensure GormSyncConfigRepository implements SyncConfigRepository
var _ integration.SyncConfigRepository = (*GormSyncConfigRepository)(nil)

// NewGormSyncConfigRepository creates a new GormSyncConfigRepository
func NewGormSyncConfigRepository(db *gorm.DB) *GormSyncConfigRepository {
	return &GormSyncConfigRepository{db: db}
}

// FindByTenant returns the tenant's configuration
func (r *GormSyncConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*integration.SyncConfiguration, error) {
	var model models.BoardSyncConfigModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncConfigNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllEnabled returns every configuration with scheduled sync enabled
func (r *GormSyncConfigRepository) FindAllEnabled(ctx context.Context) ([]integration.SyncConfiguration, error) {
	var configModels []models.BoardSyncConfigModel
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("tenant_id ASC").
		Find(&configModels).Error; err != nil {
		return nil, err
	}

	configs := make([]integration.SyncConfiguration, len(configModels))
	for i, model := range configModels {
		configs[i] = *model.ToDomain()
	}
	return configs, nil
}

// Save creates or replaces the tenant's configuration
func (r *GormSyncConfigRepository) Save(ctx context.Context, cfg *integration.SyncConfiguration) error {
	now := time.Now().UTC()
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	model := models.BoardSyncConfigModelFromDomain(cfg)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"api_key", "api_token", "board_id", "list_status", "list_region",
				"last_sync_at", "webhook_id", "webhook_url", "enabled", "updated_at",
			}),
		}).
		Create(model).Error
}

// UpdateCheckpoint sets last_sync_at only
func (r *GormSyncConfigRepository) UpdateCheckpoint(ctx context.Context, tenantID uuid.UUID, at time.Time) error {
	return r.updateColumns(ctx, tenantID, map[string]any{"last_sync_at": at.UTC()})
}

// ClearCheckpoint resets last_sync_at to NULL
func (r *GormSyncConfigRepository) ClearCheckpoint(ctx context.Context, tenantID uuid.UUID) error {
	return r.updateColumns(ctx, tenantID, map[string]any{"last_sync_at": nil})
}

// UpdateWebhook stores or clears the registered webhook
func (r *GormSyncConfigRepository) UpdateWebhook(ctx context.Context, tenantID uuid.UUID, webhookID, webhookURL string) error {
	return r.updateColumns(ctx, tenantID, map[string]any{
		"webhook_id":  webhookID,
		"webhook_url": webhookURL,
	})
}

func (r *GormSyncConfigRepository) updateColumns(ctx context.Context, tenantID uuid.UUID, columns map[string]any) error {
	columns["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.BoardSyncConfigModel{}).
		Scopes(tenant.Scope(tenantID)).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrSyncConfigNotFound
	}
	return nil
}
