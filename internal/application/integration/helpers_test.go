package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

func newTestConfig(tenantID uuid.UUID) *integration.SyncConfiguration {
	return &integration.SyncConfiguration{
		ID:       uuid.New(),
		TenantID: tenantID,
		APIKey:   "key",
		APIToken: "token",
		BoardID:  "board-1",
		ListStatus: map[string]integration.LeadStatus{
			"list-new": integration.LeadStatusNew,
		},
		ListRegion: map[string]integration.Region{
			"list-new": integration.Region("CARIBBEAN"),
		},
		Enabled: true,
	}
}

func newCard(id, listID, name, description string) integration.ExternalCard {
	return integration.ExternalCard{
		ID:          id,
		Name:        name,
		Description: description,
		ListID:      listID,
		BoardID:     "board-1",
		Raw:         []byte(fmt.Sprintf(`{"id":%q}`, id)),
	}
}

func numberedCards(prefix string, n int) []integration.ExternalCard {
	cards := make([]integration.ExternalCard, n)
	for i := range cards {
		cards[i] = newCard(fmt.Sprintf("%s-%03d", prefix, i), "list-new", fmt.Sprintf("Contact %d", i), "")
	}
	return cards
}

// ---------------------------------------------------------------------------
// memoryLeadRepository
// ---------------------------------------------------------------------------

type memoryLeadRepository struct {
	mu      sync.Mutex
	rows    map[string]integration.Lead
	now     func() time.Time
	failFor map[string]error
}

var _ integration.LeadRepository = (*memoryLeadRepository)(nil)

func newMemoryLeadRepository() *memoryLeadRepository {
	return &memoryLeadRepository{
		rows:    map[string]integration.Lead{},
		now:     time.Now,
		failFor: map[string]error{},
	}
}

func leadKey(tenantID uuid.UUID, externalID string) string {
	return tenantID.String() + "|" + externalID
}

func (r *memoryLeadRepository) Upsert(_ context.Context, lead *integration.Lead) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[lead.ExternalID]; err != nil {
		return false, err
	}
	key := leadKey(lead.TenantID, lead.ExternalID)
	now := r.now()
	if existing, ok := r.rows[key]; ok {
		lead.ID = existing.ID
		lead.CreatedAt = existing.CreatedAt
		if lead.KeepAssignment {
			lead.AssignedUserID = existing.AssignedUserID
			lead.AssignedMemberName = existing.AssignedMemberName
		}
		lead.UpdatedAt = now
		r.rows[key] = *lead
		return false, nil
	}
	lead.ID = uuid.New()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	r.rows[key] = *lead
	return true, nil
}

func (r *memoryLeadRepository) FindByExternalID(_ context.Context, tenantID uuid.UUID, externalID string) (*integration.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.rows[leadKey(tenantID, externalID)]
	if !ok {
		return nil, integration.ErrLeadNotFound
	}
	return &lead, nil
}

func (r *memoryLeadRepository) DeleteByExternalID(_ context.Context, tenantID uuid.UUID, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := leadKey(tenantID, externalID)
	_, ok := r.rows[key]
	delete(r.rows, key)
	return ok, nil
}

func (r *memoryLeadRepository) DeleteBySource(_ context.Context, tenantID uuid.UUID, source integration.LeadSource) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, lead := range r.rows {
		if lead.TenantID == tenantID && lead.Source == source {
			delete(r.rows, key)
			n++
		}
	}
	return n, nil
}

func (r *memoryLeadRepository) CountByExternalID(_ context.Context, tenantID uuid.UUID, externalID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[leadKey(tenantID, externalID)]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *memoryLeadRepository) put(lead integration.Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[leadKey(lead.TenantID, lead.ExternalID)] = lead
}

func (r *memoryLeadRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// ---------------------------------------------------------------------------
// memoryConfigRepository
// ---------------------------------------------------------------------------

type memoryConfigRepository struct {
	mu            sync.Mutex
	configs       map[uuid.UUID]*integration.SyncConfiguration
	checkpointErr error
	checkpoints   []time.Time
}

var _ integration.SyncConfigRepository = (*memoryConfigRepository)(nil)

func newMemoryConfigRepository(cfgs ...*integration.SyncConfiguration) *memoryConfigRepository {
	r := &memoryConfigRepository{configs: map[uuid.UUID]*integration.SyncConfiguration{}}
	for _, cfg := range cfgs {
		r.configs[cfg.TenantID] = cfg.Clone()
	}
	return r
}

func (r *memoryConfigRepository) FindByTenant(_ context.Context, tenantID uuid.UUID) (*integration.SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[tenantID]
	if !ok {
		return nil, integration.ErrSyncConfigNotFound
	}
	return cfg.Clone(), nil
}

func (r *memoryConfigRepository) FindAllEnabled(_ context.Context) ([]integration.SyncConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncConfiguration
	for _, cfg := range r.configs {
		if cfg.Enabled {
			out = append(out, *cfg.Clone())
		}
	}
	return out, nil
}

func (r *memoryConfigRepository) Save(_ context.Context, cfg *integration.SyncConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.TenantID] = cfg.Clone()
	return nil
}

func (r *memoryConfigRepository) UpdateCheckpoint(_ context.Context, tenantID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checkpointErr != nil {
		return r.checkpointErr
	}
	cfg, ok := r.configs[tenantID]
	if !ok {
		return integration.ErrSyncConfigNotFound
	}
	cfg.LastSyncAt = &at
	r.checkpoints = append(r.checkpoints, at)
	return nil
}

func (r *memoryConfigRepository) ClearCheckpoint(_ context.Context, tenantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[tenantID]
	if !ok {
		return integration.ErrSyncConfigNotFound
	}
	cfg.LastSyncAt = nil
	return nil
}

func (r *memoryConfigRepository) UpdateWebhook(_ context.Context, tenantID uuid.UUID, webhookID, webhookURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[tenantID]
	if !ok {
		return integration.ErrSyncConfigNotFound
	}
	cfg.WebhookID = webhookID
	cfg.WebhookURL = webhookURL
	return nil
}

func (r *memoryConfigRepository) lastSyncAt(tenantID uuid.UUID) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[tenantID].LastSyncAt
}

// ---------------------------------------------------------------------------
// fakeBoard
// ---------------------------------------------------------------------------

// fakeBoard serves cards in board order and pages them by the before cursor.
type fakeBoard struct {
	mu sync.Mutex

	cards []integration.ExternalCard
	// pages, when set, are returned verbatim by successive listing calls
	pages     [][]integration.ExternalCard
	listErrAt int // 1-based listing call that fails
	listCalls int
	queries   []integration.ListCardsQuery

	missing  map[string]bool
	getErr   map[string]error
	getCalls []string
	onGet    func(cardID string)

	members     map[string]integration.CardMember
	memberErr   error
	memberCalls int

	webhooks      []integration.Webhook
	createdHooks  int
	deletedHooks  []string
	deleteHookErr error
}

var _ integration.BoardClient = (*fakeBoard)(nil)

func newFakeBoard(cards ...integration.ExternalCard) *fakeBoard {
	return &fakeBoard{
		cards:   cards,
		missing: map[string]bool{},
		getErr:  map[string]error{},
		members: map[string]integration.CardMember{},
	}
}

func (b *fakeBoard) ListOpenCards(_ context.Context, _ *integration.SyncConfiguration, query integration.ListCardsQuery) ([]integration.ExternalCard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	b.queries = append(b.queries, query)
	if b.listErrAt == b.listCalls {
		return nil, fmt.Errorf("%w: status 500", integration.ErrBoardRequestFailed)
	}
	if b.pages != nil {
		if b.listCalls > len(b.pages) {
			return nil, nil
		}
		return b.pages[b.listCalls-1], nil
	}

	start := 0
	if query.Before != "" {
		start = len(b.cards)
		for i, c := range b.cards {
			if c.ID == query.Before {
				start = i + 1
				break
			}
		}
	}
	end := min(start+query.Limit, len(b.cards))
	return append([]integration.ExternalCard(nil), b.cards[start:end]...), nil
}

func (b *fakeBoard) GetCard(_ context.Context, _ *integration.SyncConfiguration, cardID string) (*integration.ExternalCard, error) {
	b.mu.Lock()
	b.getCalls = append(b.getCalls, cardID)
	hook := b.onGet
	b.mu.Unlock()
	if hook != nil {
		hook(cardID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.getErr[cardID]; err != nil {
		return nil, err
	}
	if b.missing[cardID] {
		return nil, integration.ErrCardNotFound
	}
	for _, page := range append([][]integration.ExternalCard{b.cards}, b.pages...) {
		for i := range page {
			if page[i].ID == cardID {
				card := page[i]
				return &card, nil
			}
		}
	}
	return nil, integration.ErrCardNotFound
}

func (b *fakeBoard) GetMember(_ context.Context, _ *integration.SyncConfiguration, memberID string) (*integration.CardMember, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.memberCalls++
	if b.memberErr != nil {
		return nil, b.memberErr
	}
	m, ok := b.members[memberID]
	if !ok {
		return nil, integration.ErrMemberNotFound
	}
	return &m, nil
}

func (b *fakeBoard) CreateWebhook(_ context.Context, cfg *integration.SyncConfiguration, callbackURL, description string) (*integration.Webhook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createdHooks++
	hook := integration.Webhook{
		ID:          fmt.Sprintf("wh-%d", b.createdHooks),
		ModelID:     cfg.BoardID,
		CallbackURL: callbackURL,
		Description: description,
		Active:      true,
	}
	b.webhooks = append(b.webhooks, hook)
	return &hook, nil
}

func (b *fakeBoard) ListWebhooks(_ context.Context, _ *integration.SyncConfiguration) ([]integration.Webhook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]integration.Webhook(nil), b.webhooks...), nil
}

func (b *fakeBoard) DeleteWebhook(_ context.Context, _ *integration.SyncConfiguration, webhookID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletedHooks = append(b.deletedHooks, webhookID)
	return b.deleteHookErr
}

func (b *fakeBoard) detailFetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.getCalls)
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// MockUserDirectory is a mock implementation of UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.CandidateUser, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CandidateUser), args.Error(1)
}

// MockDeliveryStore is a mock implementation of DeliveryStore
type MockDeliveryStore struct {
	mock.Mock
}

func (m *MockDeliveryStore) Claim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, deliveryID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryStore) Confirm(ctx context.Context, deliveryID string, ttl time.Duration) error {
	args := m.Called(ctx, deliveryID, ttl)
	return args.Error(0)
}

func (m *MockDeliveryStore) Forget(ctx context.Context, deliveryID string) error {
	args := m.Called(ctx, deliveryID)
	return args.Error(0)
}

func (m *MockDeliveryStore) Close() error {
	return m.Called().Error(0)
}

// recordingSleeper captures pacing waits without sleeping
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}
