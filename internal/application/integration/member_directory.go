package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// CollaboratorMatch is the outcome of resolving a card's first collaborator.
type CollaboratorMatch struct {
	// MemberName is the board display name used for matching
	MemberName string
	// Match is set when a local user was found
	Match *integration.MemberMatch
	// Err is set when the member or the tenant's users could not be loaded.
	// The card may still have an assignee, so callers keep what they stored.
	Err error
}

// Resolved reports whether the lookup completed, with or without a match
func (m CollaboratorMatch) Resolved() bool {
	return m.Err == nil
}

// CollaboratorResolver maps a card's first collaborator to a local user.
// Resolution is best effort: failures are logged, never returned.
type CollaboratorResolver interface {
	ResolveCollaborator(ctx context.Context, cfg *integration.SyncConfiguration, card *integration.ExternalCard) CollaboratorMatch
}

// MemberDirectory resolves collaborators against the tenant's active users.
// User lists are cached per tenant and member profiles per member ID, both
// with a TTL so renamed users are picked up without a restart.
type MemberDirectory struct {
	users   integration.UserDirectory
	board   integration.CardSource
	tenants *expirable.LRU[uuid.UUID, []integration.CandidateUser]
	members *expirable.LRU[string, string]
	logger  *zap.Logger
}

// Ensure MemberDirectory implements CollaboratorResolver
var _ CollaboratorResolver = (*MemberDirectory)(nil)

// minCacheTTL keeps the expirable LRU's sweep interval above zero
const minCacheTTL = time.Second

// NewMemberDirectory creates a directory with caches of size entries each.
// TTLs below a second are raised to a second.
func NewMemberDirectory(users integration.UserDirectory, board integration.CardSource, size int, ttl time.Duration, logger *zap.Logger) *MemberDirectory {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl = max(ttl, minCacheTTL)
	return &MemberDirectory{
		users:   users,
		board:   board,
		tenants: expirable.NewLRU[uuid.UUID, []integration.CandidateUser](size, nil, ttl),
		members: expirable.NewLRU[string, string](size*4, nil, ttl),
		logger:  logger,
	}
}

// Candidates returns the tenant's active users, cached
func (d *MemberDirectory) Candidates(ctx context.Context, tenantID uuid.UUID) ([]integration.CandidateUser, error) {
	if users, ok := d.tenants.Get(tenantID); ok {
		return users, nil
	}
	users, err := d.users.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	d.tenants.Add(tenantID, users)
	return users, nil
}

// Invalidate drops the cached users of a tenant
func (d *MemberDirectory) Invalidate(tenantID uuid.UUID) {
	d.tenants.Remove(tenantID)
}

// ResolveCollaborator looks up the first collaborator's display name, from the
// card when it was expanded and from the board otherwise, and matches it.
func (d *MemberDirectory) ResolveCollaborator(ctx context.Context, cfg *integration.SyncConfiguration, card *integration.ExternalCard) CollaboratorMatch {
	memberID, ok := card.FirstMemberID()
	if !ok {
		return CollaboratorMatch{}
	}
	log := d.logger.With(zap.String("card_id", card.ID), zap.String("member_id", memberID))

	name, err := d.memberName(ctx, cfg, card, memberID)
	switch {
	case errors.Is(err, integration.ErrMemberNotFound):
		log.Info("Card collaborator no longer exists on the board")
		return CollaboratorMatch{}
	case err != nil:
		log.Warn("Failed to fetch card collaborator", zap.Error(err))
		return CollaboratorMatch{Err: err}
	}
	if name == "" {
		return CollaboratorMatch{}
	}

	users, err := d.Candidates(ctx, cfg.TenantID)
	if err != nil {
		log.Warn("Failed to load users for member resolution", zap.Error(err))
		return CollaboratorMatch{MemberName: name, Err: err}
	}

	match, ok := integration.ResolveMember(name, users)
	if !ok {
		log.Info("No local user matches card collaborator", zap.String("member_name", name))
		return CollaboratorMatch{MemberName: name}
	}
	log.Debug("Resolved card collaborator",
		zap.String("member_name", name),
		zap.String("user_id", match.UserID.String()),
		zap.String("rule", string(match.Rule)),
	)
	return CollaboratorMatch{MemberName: name, Match: &match}
}

func (d *MemberDirectory) memberName(ctx context.Context, cfg *integration.SyncConfiguration, card *integration.ExternalCard, memberID string) (string, error) {
	if m, ok := card.MemberByID(memberID); ok {
		if name := m.DisplayName(); name != "" {
			return name, nil
		}
	}
	if name, ok := d.members.Get(memberID); ok {
		return name, nil
	}
	member, err := d.board.GetMember(ctx, cfg, memberID)
	if err != nil {
		return "", err
	}
	name := member.DisplayName()
	d.members.Add(memberID, name)
	return name, nil
}
