package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/logger"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/telemetry"
)

const (
	// DefaultDeliveryTTL is how long a processed delivery is remembered
	DefaultDeliveryTTL = 24 * time.Hour
	// DefaultClaimTTL bounds how long an unfinished delivery blocks redeliveries
	DefaultClaimTTL = 5 * time.Minute
)

// WebhookService handles board card events. The event body only names the
// card; the card itself is always refetched.
type WebhookService struct {
	configs    integration.SyncConfigRepository
	board      integration.CardSource
	leads      integration.LeadRepository
	syncer     CardSyncer
	deliveries integration.DeliveryStore
	dedupTTL   time.Duration
	claimTTL   time.Duration
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// WebhookOption configures a WebhookService
type WebhookOption func(*WebhookService)

// WithClaimTTL sets how long a delivery stays claimed while it is processed
func WithClaimTTL(ttl time.Duration) WebhookOption {
	return func(s *WebhookService) {
		if ttl > 0 {
			s.claimTTL = ttl
		}
	}
}

// NewWebhookService creates a WebhookService. deliveries may be nil to
// disable redelivery dedup.
func NewWebhookService(
	configs integration.SyncConfigRepository,
	board integration.CardSource,
	leads integration.LeadRepository,
	syncer CardSyncer,
	deliveries integration.DeliveryStore,
	dedupTTL time.Duration,
	logger *zap.Logger,
	opts ...WebhookOption,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dedupTTL <= 0 {
		dedupTTL = DefaultDeliveryTTL
	}
	s := &WebhookService{
		configs:    configs,
		board:      board,
		leads:      leads,
		syncer:     syncer,
		deliveries: deliveries,
		dedupTTL:   dedupTTL,
		claimTTL:   DefaultClaimTTL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.claimTTL = min(s.claimTTL, s.dedupTTL)
	return s
}

// SetSyncMetrics sets the metrics collectors (optional)
func (s *WebhookService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// HandleDelivery processes one webhook delivery at most once per action ID.
// The action is claimed for the claim TTL and confirmed for the dedup TTL
// after it succeeds. A failed delivery is forgotten so the board's
// redelivery is processed.
func (s *WebhookService) HandleDelivery(ctx context.Context, tenantID uuid.UUID, delivery WebhookDelivery) (WebhookOutcome, error) {
	if delivery.CardID == "" {
		s.metrics.WebhookDelivered(string(WebhookActionIgnored))
		return WebhookOutcome{TenantID: tenantID, Action: WebhookActionIgnored}, nil
	}

	dedupKey := ""
	if s.deliveries != nil && delivery.ActionID != "" {
		dedupKey = tenantID.String() + ":" + delivery.ActionID
		isNew, err := s.deliveries.Claim(ctx, dedupKey, s.claimTTL)
		if err != nil {
			s.logger.Warn("Webhook dedup unavailable", zap.String("action_id", delivery.ActionID), zap.Error(err))
			dedupKey = ""
		} else if !isNew {
			s.metrics.WebhookDelivered(string(WebhookActionDuplicate))
			return WebhookOutcome{TenantID: tenantID, CardID: delivery.CardID, Action: WebhookActionDuplicate}, nil
		}
	}

	outcome, err := s.OnCardEvent(ctx, tenantID, delivery.CardID)
	if dedupKey == "" {
		return outcome, err
	}
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if forgetErr := s.deliveries.Forget(ctx, dedupKey); forgetErr != nil {
			s.logger.Warn("Failed to release webhook delivery mark", zap.String("action_id", delivery.ActionID), zap.Error(forgetErr))
		}
		return outcome, err
	}
	if confirmErr := s.deliveries.Confirm(ctx, dedupKey, s.dedupTTL); confirmErr != nil {
		s.logger.Warn("Failed to confirm webhook delivery mark", zap.String("action_id", delivery.ActionID), zap.Error(confirmErr))
	}
	return outcome, nil
}

// OnCardEvent refetches the card and syncs it, or deletes its lead when the
// board no longer has it.
func (s *WebhookService) OnCardEvent(ctx context.Context, tenantID uuid.UUID, cardID string) (WebhookOutcome, error) {
	outcome := WebhookOutcome{TenantID: tenantID, CardID: cardID}
	if cardID == "" {
		return outcome, integration.ErrCardMissingID
	}

	ctx, log := logger.WithTenantID(ctx, s.logger, tenantID.String())
	log = log.With(zap.String("card_id", cardID))
	ctx, span := telemetry.StartSpan(ctx, "boardsync.card_event",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrCardID, cardID,
	)
	defer span.End()

	cfg, err := s.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, integration.ErrSyncConfigNotFound) {
			err = fmt.Errorf("%w: %w", integration.ErrFatalConfiguration, err)
		}
		return s.fail(span, log, outcome, err)
	}
	if err := cfg.Validate(); err != nil {
		return s.fail(span, log, outcome, err)
	}

	card, err := s.board.GetCard(ctx, cfg, cardID)
	if errors.Is(err, integration.ErrCardNotFound) {
		deleted, delErr := s.leads.DeleteByExternalID(ctx, tenantID, cardID)
		if delErr != nil {
			return s.fail(span, log, outcome, fmt.Errorf("delete lead: %w", delErr))
		}
		outcome.Action = WebhookActionDeleted
		s.metrics.WebhookDelivered(string(WebhookActionDeleted))
		telemetry.SetAttributes(span, telemetry.AttrOutcome, string(WebhookActionDeleted))
		log.Info("Card gone from board, lead deleted", zap.Bool("lead_existed", deleted))
		return outcome, nil
	}
	if err != nil {
		return s.fail(span, log, outcome, fmt.Errorf("fetch card: %w", err))
	}

	result, err := s.syncer.Sync(ctx, cfg, card)
	if err != nil {
		return s.fail(span, log, outcome, err)
	}
	leadID := result.LeadID
	outcome.Action = WebhookActionSynced
	outcome.Created = result.Created
	outcome.LeadID = &leadID
	s.metrics.WebhookDelivered(string(WebhookActionSynced))
	telemetry.SetAttributes(span, telemetry.AttrOutcome, string(WebhookActionSynced))
	log.Info("Card event synced", zap.Bool("created", result.Created))
	return outcome, nil
}

func (s *WebhookService) fail(span trace.Span, log *zap.Logger, outcome WebhookOutcome, err error) (WebhookOutcome, error) {
	telemetry.RecordError(span, err)
	s.metrics.WebhookDelivered("failed")
	log.Warn("Card event failed", zap.Error(err))
	return outcome, err
}
