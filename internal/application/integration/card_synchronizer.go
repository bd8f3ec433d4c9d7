package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// SyncOutcome is the result of projecting one card onto its lead.
type SyncOutcome struct {
	Created bool
	LeadID  uuid.UUID
	Status  integration.LeadStatus
	Region  integration.Region
	// AssignedUserID is nil when no local user matched. A failed lookup
	// reports the assignment already stored.
	AssignedUserID *uuid.UUID
}

// CardSyncer projects a card onto the local lead store.
type CardSyncer interface {
	Sync(ctx context.Context, cfg *integration.SyncConfiguration, card *integration.ExternalCard) (SyncOutcome, error)
}

// CardSynchronizer derives a lead from a card and upserts it.
type CardSynchronizer struct {
	leads   integration.LeadRepository
	members CollaboratorResolver
	now     func() time.Time
	logger  *zap.Logger
}

// Ensure CardSynchronizer implements CardSyncer
var _ CardSyncer = (*CardSynchronizer)(nil)

// CardSynchronizerOption configures a CardSynchronizer
type CardSynchronizerOption func(*CardSynchronizer)

// WithSynchronizerClock sets the time source for last_synced_at
func WithSynchronizerClock(now func() time.Time) CardSynchronizerOption {
	return func(s *CardSynchronizer) {
		s.now = now
	}
}

// NewCardSynchronizer creates a CardSynchronizer. members may be nil, in
// which case leads are never assigned.
func NewCardSynchronizer(leads integration.LeadRepository, members CollaboratorResolver, logger *zap.Logger, opts ...CardSynchronizerOption) *CardSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CardSynchronizer{
		leads:   leads,
		members: members,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync writes the lead for card with a single upsert keyed by
// (tenant, card ID). Syncing the same card twice leaves one row whose only
// change is last_synced_at and updated_at.
func (s *CardSynchronizer) Sync(ctx context.Context, cfg *integration.SyncConfiguration, card *integration.ExternalCard) (SyncOutcome, error) {
	if card == nil {
		return SyncOutcome{}, integration.ErrCardMissingID
	}
	if err := card.Validate(); err != nil {
		return SyncOutcome{}, err
	}

	attrs := integration.ResolveList(card.ListID, cfg)
	fields := integration.ExtractFields(card.Name, card.Description)

	var collaborator CollaboratorMatch
	if s.members != nil {
		collaborator = s.members.ResolveCollaborator(ctx, cfg, card)
	}

	lead := buildLead(cfg, card, attrs, fields, collaborator)
	lead.LastSyncedAt = s.now().UTC()

	created, err := s.leads.Upsert(ctx, lead)
	if err != nil {
		return SyncOutcome{}, fmt.Errorf("upsert lead for card %s: %w", card.ID, err)
	}

	s.logger.Debug("Card synced",
		zap.String("card_id", card.ID),
		zap.String("lead_id", lead.ID.String()),
		zap.Bool("created", created),
		zap.String("status", attrs.Status.String()),
		zap.String("region", attrs.Region.String()),
	)
	return SyncOutcome{
		Created:        created,
		LeadID:         lead.ID,
		Status:         attrs.Status,
		Region:         attrs.Region,
		AssignedUserID: lead.AssignedUserID,
	}, nil
}

func buildLead(
	cfg *integration.SyncConfiguration,
	card *integration.ExternalCard,
	attrs integration.ListAttributes,
	fields integration.ExtractedFields,
	collaborator CollaboratorMatch,
) *integration.Lead {
	lead := &integration.Lead{
		TenantID:         cfg.TenantID,
		Source:           integration.LeadSourceTrello,
		ExternalID:       card.ID,
		BoardID:          card.BoardID,
		ListID:           card.ListID,
		Status:           attrs.Status,
		Region:           attrs.Region,
		ContactName:      fields.Value(integration.FieldContactName),
		ContactPhone:     fields.Value(integration.FieldPhone),
		ContactEmail:     fields.Value(integration.FieldEmail),
		ContactInstagram: fields.Value(integration.FieldInstagram),
		Destination:      fields.Value(integration.FieldDestination),
		TravelDates:      fields.Value(integration.FieldDates),
		Passengers:       fields.Value(integration.FieldPassengers),
		Origin:           fields.Value(integration.FieldOrigin),
		Description:      card.Description,
		ExtractedFields:  map[string]string(fields),
		ExternalURL:      card.ShortURL,
		Closed:           card.Closed,
		LastActivityAt:   card.LastActivity,
		RawPayload:       card.Raw,
	}
	if lead.BoardID == "" {
		lead.BoardID = cfg.BoardID
	}

	if text, ok := fields.Get(integration.FieldBudget); ok {
		lead.BudgetText = text
		if amount, currency, ok := integration.ParseBudget(text); ok {
			lead.BudgetAmount = decimal.NewNullDecimal(amount)
			lead.BudgetCurrency = currency
		}
	}

	if !collaborator.Resolved() {
		lead.KeepAssignment = true
		return lead
	}
	lead.AssignedMemberName = collaborator.MemberName
	if collaborator.Match != nil {
		userID := collaborator.Match.UserID
		lead.AssignedUserID = &userID
	}
	return lead
}
