package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Repository Ports
// ---------------------------------------------------------------------------

// LeadRepository persists leads.
type LeadRepository interface {
	// Upsert writes the lead keyed by (TenantID, ExternalID).
	// created is true when no row existed for the key before the call.
	// On update the stored ID and CreatedAt are kept and lead is refreshed with them.
	Upsert(ctx context.Context, lead *Lead) (created bool, err error)

	// FindByExternalID returns ErrLeadNotFound when no lead exists for the key
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*Lead, error)

	// DeleteByExternalID removes the lead for the key; deleted is false if none existed
	DeleteByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (deleted bool, err error)

	// DeleteBySource removes every lead of the tenant with the given source
	DeleteBySource(ctx context.Context, tenantID uuid.UUID, source LeadSource) (int64, error)

	// CountByExternalID returns how many leads carry the key (0 or 1)
	CountByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (int64, error)
}

// SyncConfigRepository persists per-tenant sync configurations.
type SyncConfigRepository interface {
	// FindByTenant returns ErrSyncConfigNotFound when the tenant has no config
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*SyncConfiguration, error)

	// FindAllEnabled returns configs with scheduled sync enabled
	FindAllEnabled(ctx context.Context) ([]SyncConfiguration, error)

	// Save creates or replaces the tenant's configuration
	Save(ctx context.Context, cfg *SyncConfiguration) error

	// UpdateCheckpoint sets LastSyncAt; nothing else is written
	UpdateCheckpoint(ctx context.Context, tenantID uuid.UUID, at time.Time) error

	// ClearCheckpoint resets LastSyncAt to NULL
	ClearCheckpoint(ctx context.Context, tenantID uuid.UUID) error

	// UpdateWebhook stores (or clears, with empty values) the registered webhook
	UpdateWebhook(ctx context.Context, tenantID uuid.UUID, webhookID, webhookURL string) error
}

// UserDirectory lists the local users collaborators may be matched against.
type UserDirectory interface {
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]CandidateUser, error)
}

// ---------------------------------------------------------------------------
// Board Ports
// ---------------------------------------------------------------------------

// ListCardsQuery pages through a board's open cards.
type ListCardsQuery struct {
	// Before is the cursor: only cards older than this card ID are returned
	Before string
	// Limit is the page size
	Limit int
}

// CardSource reads cards from the board.
type CardSource interface {
	// ListOpenCards returns one page of the board's open cards (summary fields only)
	ListOpenCards(ctx context.Context, cfg *SyncConfiguration, query ListCardsQuery) ([]ExternalCard, error)

	// GetCard returns the full card detail; ErrCardNotFound on 404
	GetCard(ctx context.Context, cfg *SyncConfiguration, cardID string) (*ExternalCard, error)

	// GetMember returns a collaborator profile; ErrMemberNotFound on 404
	GetMember(ctx context.Context, cfg *SyncConfiguration, memberID string) (*CardMember, error)
}

// Webhook is a webhook registration on the board.
type Webhook struct {
	ID          string
	ModelID     string
	CallbackURL string
	Description string
	Active      bool
}

// WebhookRegistrar manages webhook registrations on the board.
type WebhookRegistrar interface {
	CreateWebhook(ctx context.Context, cfg *SyncConfiguration, callbackURL, description string) (*Webhook, error)
	ListWebhooks(ctx context.Context, cfg *SyncConfiguration) ([]Webhook, error)
	DeleteWebhook(ctx context.Context, cfg *SyncConfiguration, webhookID string) error
}

// BoardClient is the full board port implemented by the Trello adapter.
type BoardClient interface {
	CardSource
	WebhookRegistrar
}

// DeliveryStore remembers webhook deliveries. A delivery is claimed with a
// short TTL while it is processed and confirmed with the full TTL once done,
// so a crash mid-delivery only blocks redeliveries until the claim expires.
type DeliveryStore interface {
	// Claim records deliveryID for ttl and returns false if a mark already exists
	Claim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
	// Confirm keeps the mark for ttl from now, whether or not the claim expired
	Confirm(ctx context.Context, deliveryID string, ttl time.Duration) error
	// Forget removes a mark so a redelivery is processed again
	Forget(ctx context.Context, deliveryID string) error
	Close() error
}
