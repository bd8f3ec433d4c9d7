package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// WebhookCallbackPath is the route board webhooks are delivered to
const WebhookCallbackPath = "/webhooks/trello/"

// OperatorService exposes the operator controls: manual runs, full reset,
// single-card sync, run history and webhook lifecycle.
type OperatorService struct {
	driver       *ReconciliationDriver
	webhooks     *WebhookService
	configs      integration.SyncConfigRepository
	leads        integration.LeadRepository
	registrar    integration.WebhookRegistrar
	history      *RunHistory
	callbackBase string
	logger       *zap.Logger
}

// NewOperatorService creates an OperatorService. callbackBase is the public
// base URL board webhooks call back to.
func NewOperatorService(
	driver *ReconciliationDriver,
	webhooks *WebhookService,
	configs integration.SyncConfigRepository,
	leads integration.LeadRepository,
	registrar integration.WebhookRegistrar,
	history *RunHistory,
	callbackBase string,
	logger *zap.Logger,
) *OperatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history == nil {
		history = NewRunHistory(0)
	}
	return &OperatorService{
		driver:       driver,
		webhooks:     webhooks,
		configs:      configs,
		leads:        leads,
		registrar:    registrar,
		history:      history,
		callbackBase: strings.TrimRight(callbackBase, "/"),
		logger:       logger,
	}
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

// RunReconciliation runs the driver and records the summary in the history
func (s *OperatorService) RunReconciliation(ctx context.Context, tenantID uuid.UUID, mode integration.RunMode) (*RunSummary, error) {
	summary, err := s.driver.Run(ctx, tenantID, mode)
	if summary != nil {
		s.history.Add(*summary)
	}
	return summary, err
}

// FullReset deletes every board-sourced lead of the tenant, clears the
// checkpoint and runs a full reconciliation. Manual leads are kept.
func (s *OperatorService) FullReset(ctx context.Context, tenantID uuid.UUID) (*RunSummary, error) {
	if _, err := s.validConfig(ctx, tenantID); err != nil {
		return nil, err
	}

	removed, err := s.leads.DeleteBySource(ctx, tenantID, integration.LeadSourceTrello)
	if err != nil {
		return nil, fmt.Errorf("delete board leads: %w", err)
	}
	if err := s.configs.ClearCheckpoint(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("clear checkpoint: %w", err)
	}
	s.logger.Info("Full reset: board leads removed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("removed", removed),
	)
	return s.RunReconciliation(ctx, tenantID, integration.RunModeFull)
}

// SyncOneCard re-runs the webhook path for a single card
func (s *OperatorService) SyncOneCard(ctx context.Context, tenantID uuid.UUID, cardID string) (WebhookOutcome, error) {
	return s.webhooks.OnCardEvent(ctx, tenantID, cardID)
}

// RecentRuns returns up to limit recent summaries of the tenant, newest first
func (s *OperatorService) RecentRuns(tenantID uuid.UUID, limit int) []RunSummary {
	return s.history.Recent(tenantID, limit)
}

// SeedConfiguration stores cfg unless the tenant already has a configuration.
// It reports whether cfg was stored.
func (s *OperatorService) SeedConfiguration(ctx context.Context, cfg *integration.SyncConfiguration) (bool, error) {
	_, err := s.configs.FindByTenant(ctx, cfg.TenantID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, integration.ErrSyncConfigNotFound) {
		return false, err
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	if err := s.configs.Save(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Webhook lifecycle
// ---------------------------------------------------------------------------

// CallbackURL returns the webhook callback URL of a tenant
func (s *OperatorService) CallbackURL(tenantID uuid.UUID) string {
	return s.callbackBase + WebhookCallbackPath + tenantID.String()
}

// RegisterWebhook creates the board webhook and stores it on the configuration.
// An existing registration for the same callback URL is returned unchanged.
func (s *OperatorService) RegisterWebhook(ctx context.Context, tenantID uuid.UUID) (*integration.Webhook, error) {
	if s.callbackBase == "" {
		return nil, fmt.Errorf("%w: webhook callback base URL not configured", integration.ErrFatalConfiguration)
	}
	cfg, err := s.validConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	callbackURL := s.CallbackURL(tenantID)
	if cfg.HasWebhook() && cfg.WebhookURL == callbackURL {
		return &integration.Webhook{
			ID:          cfg.WebhookID,
			ModelID:     cfg.BoardID,
			CallbackURL: cfg.WebhookURL,
			Active:      true,
		}, nil
	}

	webhook, err := s.registrar.CreateWebhook(ctx, cfg, callbackURL, "board lead sync "+tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	if err := s.configs.UpdateWebhook(ctx, tenantID, webhook.ID, webhook.CallbackURL); err != nil {
		return nil, fmt.Errorf("store webhook: %w", err)
	}
	s.logger.Info("Board webhook registered",
		zap.String("tenant_id", tenantID.String()),
		zap.String("webhook_id", webhook.ID),
		zap.String("callback_url", webhook.CallbackURL),
	)
	return webhook, nil
}

// ListWebhooks returns the webhooks registered on the tenant's board
func (s *OperatorService) ListWebhooks(ctx context.Context, tenantID uuid.UUID) ([]integration.Webhook, error) {
	cfg, err := s.validConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.registrar.ListWebhooks(ctx, cfg)
}

// DeleteWebhook removes the stored webhook from the board and the configuration.
// A webhook the board already forgot is only cleared locally.
func (s *OperatorService) DeleteWebhook(ctx context.Context, tenantID uuid.UUID) error {
	cfg, err := s.validConfig(ctx, tenantID)
	if err != nil {
		return err
	}
	if !cfg.HasWebhook() {
		return integration.ErrWebhookNotRegistered
	}

	err = s.registrar.DeleteWebhook(ctx, cfg, cfg.WebhookID)
	if err != nil && !errors.Is(err, integration.ErrWebhookNotRegistered) {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if err := s.configs.UpdateWebhook(ctx, tenantID, "", ""); err != nil {
		return fmt.Errorf("clear webhook: %w", err)
	}
	s.logger.Info("Board webhook deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("webhook_id", cfg.WebhookID),
	)
	return nil
}

// EnsureWebhooks registers webhooks for every enabled tenant. Failures are
// logged and counted; the number of failed tenants is returned.
func (s *OperatorService) EnsureWebhooks(ctx context.Context) (int, error) {
	configs, err := s.configs.FindAllEnabled(ctx)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, cfg := range configs {
		if _, err := s.RegisterWebhook(ctx, cfg.TenantID); err != nil {
			failed++
			s.logger.Warn("Webhook auto-registration failed",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.Error(err),
			)
		}
	}
	return failed, nil
}

func (s *OperatorService) validConfig(ctx context.Context, tenantID uuid.UUID) (*integration.SyncConfiguration, error) {
	cfg, err := s.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, integration.ErrSyncConfigNotFound) {
			return nil, fmt.Errorf("%w: %w", integration.ErrFatalConfiguration, err)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
