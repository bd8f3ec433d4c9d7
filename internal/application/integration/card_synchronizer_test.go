package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

func TestCardSynchronizer_Idempotent(t *testing.T) {
	tenantID := uuid.New()
	cfg := newTestConfig(tenantID)
	repo := newMemoryLeadRepository()

	tick := testNow
	syncer := NewCardSynchronizer(repo, nil, nil, WithSynchronizerClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))

	card := newCard("card-1", "list-new", "Ana Pérez", "📍 Destino: Cancún\n💰 Presupuesto: USD 1.500")
	first, err := syncer.Sync(context.Background(), cfg, &card)
	require.NoError(t, err)
	assert.True(t, first.Created)
	before, err := repo.FindByExternalID(context.Background(), tenantID, "card-1")
	require.NoError(t, err)

	second, err := syncer.Sync(context.Background(), cfg, &card)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.LeadID, second.LeadID)
	after, err := repo.FindByExternalID(context.Background(), tenantID, "card-1")
	require.NoError(t, err)

	assert.True(t, after.LastSyncedAt.After(before.LastSyncedAt))
	before.LastSyncedAt, after.LastSyncedAt = time.Time{}, time.Time{}
	before.UpdatedAt, after.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, before, after)
	assert.Equal(t, 1, repo.count())
}

func TestCardSynchronizer_ConcurrentSyncsKeepOneRow(t *testing.T) {
	tenantID := uuid.New()
	cfg := newTestConfig(tenantID)
	repo := newMemoryLeadRepository()
	syncer := NewCardSynchronizer(repo, nil, nil)
	card := newCard("card-race", "list-new", "Ana", "")

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := card
			out, err := syncer.Sync(context.Background(), cfg, &c)
			assert.NoError(t, err)
			if out.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	count, err := repo.CountByExternalID(context.Background(), tenantID, "card-race")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCardSynchronizer_LeadProjection(t *testing.T) {
	tenantID := uuid.New()
	cfg := newTestConfig(tenantID)
	repo := newMemoryLeadRepository()
	syncer := NewCardSynchronizer(repo, nil, nil, WithSynchronizerClock(fixedClock()))

	activity := testNow.Add(-time.Hour)
	card := newCard("card-1", "list-new", "  María Gómez ", "📱 WhatsApp: +54 9 11 5555 1234\nsígueme @otra.cuenta\n💰 Presupuesto: 2.500 USD\n🔗 Origen: Instagram")
	card.ShortURL = "https://trello.com/c/abc"
	card.LastActivity = &activity

	out, err := syncer.Sync(context.Background(), cfg, &card)
	require.NoError(t, err)
	assert.Equal(t, integration.LeadStatusNew, out.Status)

	lead, err := repo.FindByExternalID(context.Background(), tenantID, "card-1")
	require.NoError(t, err)
	assert.Equal(t, integration.LeadSourceTrello, lead.Source)
	assert.Equal(t, "María Gómez", lead.ContactName)
	assert.Equal(t, "+54 9 11 5555 1234", lead.ContactPhone)
	assert.Equal(t, "otra.cuenta", lead.ContactInstagram)
	assert.Equal(t, "Instagram", lead.Origin)
	assert.Equal(t, "2.500 USD", lead.BudgetText)
	require.True(t, lead.BudgetAmount.Valid)
	assert.Equal(t, "2500", lead.BudgetAmount.Decimal.String())
	assert.Equal(t, "USD", lead.BudgetCurrency)
	assert.Equal(t, integration.Region("CARIBBEAN"), lead.Region)
	assert.Equal(t, "https://trello.com/c/abc", lead.ExternalURL)
	assert.Equal(t, &activity, lead.LastActivityAt)
	assert.JSONEq(t, `{"id":"card-1"}`, string(lead.RawPayload))
	assert.Equal(t, testNow, lead.LastSyncedAt)
	assert.Nil(t, lead.AssignedUserID)
}

func TestCardSynchronizer_UnmappedListUsesDefaults(t *testing.T) {
	tenantID := uuid.New()
	repo := newMemoryLeadRepository()
	syncer := NewCardSynchronizer(repo, nil, nil)

	card := newCard("card-1", "list-unknown", "Ana", "")
	out, err := syncer.Sync(context.Background(), newTestConfig(tenantID), &card)
	require.NoError(t, err)
	assert.Equal(t, integration.DefaultLeadStatus, out.Status)
	assert.Equal(t, integration.RegionOther, out.Region)
}

func TestCardSynchronizer_MissingList(t *testing.T) {
	repo := newMemoryLeadRepository()
	syncer := NewCardSynchronizer(repo, nil, nil)

	card := newCard("card-1", "", "Ana", "")
	_, err := syncer.Sync(context.Background(), newTestConfig(uuid.New()), &card)
	assert.ErrorIs(t, err, integration.ErrCardMissingList)
	assert.Equal(t, 0, repo.count())

	_, err = syncer.Sync(context.Background(), newTestConfig(uuid.New()), nil)
	assert.ErrorIs(t, err, integration.ErrCardMissingID)
}

func TestCardSynchronizer_StoreFailure(t *testing.T) {
	repo := newMemoryLeadRepository()
	repo.failFor["card-1"] = assert.AnError
	syncer := NewCardSynchronizer(repo, nil, nil)

	card := newCard("card-1", "list-new", "Ana", "")
	_, err := syncer.Sync(context.Background(), newTestConfig(uuid.New()), &card)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCardSynchronizer_AssignsCollaborator(t *testing.T) {
	tenantID := uuid.New()
	juan := integration.CandidateUser{ID: uuid.New(), Name: "Juan Pérez"}
	juanita := integration.CandidateUser{ID: uuid.New(), Name: "Juanita Gómez"}

	tests := []struct {
		name       string
		users      []integration.CandidateUser
		memberName string
		wantUser   *uuid.UUID
	}{
		{"given name resolves to full name", []integration.CandidateUser{juanita, juan}, "Juan", &juan.ID},
		{"longer given name does not match", []integration.CandidateUser{juanita}, "Juan", nil},
		{"accents and case are ignored", []integration.CandidateUser{juan}, "JUAN PEREZ", &juan.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserDirectory)
			users.On("FindActiveByTenant", mock.Anything, tenantID).Return(tt.users, nil)
			directory := NewMemberDirectory(users, newFakeBoard(), 8, time.Minute, nil)
			repo := newMemoryLeadRepository()
			syncer := NewCardSynchronizer(repo, directory, nil)

			card := newCard("card-1", "list-new", "Cliente", "")
			card.MemberIDs = []string{"m1"}
			card.Members = []integration.CardMember{{ID: "m1", FullName: tt.memberName}}

			out, err := syncer.Sync(context.Background(), newTestConfig(tenantID), &card)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, out.AssignedUserID)

			lead, err := repo.FindByExternalID(context.Background(), tenantID, "card-1")
			require.NoError(t, err)
			assert.Equal(t, tt.memberName, lead.AssignedMemberName)
		})
	}
}

func TestCardSynchronizer_FailedLookupKeepsAssignment(t *testing.T) {
	tenantID := uuid.New()
	juan := integration.CandidateUser{ID: uuid.New(), Name: "Juan Pérez"}

	users := new(MockUserDirectory)
	users.On("FindActiveByTenant", mock.Anything, tenantID).Return([]integration.CandidateUser{juan}, nil).Once()
	users.On("FindActiveByTenant", mock.Anything, tenantID).Return(nil, assert.AnError)
	directory := NewMemberDirectory(users, newFakeBoard(), 8, time.Minute, nil)
	repo := newMemoryLeadRepository()
	syncer := NewCardSynchronizer(repo, directory, nil)

	card := newCard("card-1", "list-new", "Cliente", "")
	card.MemberIDs = []string{"m1"}
	card.Members = []integration.CardMember{{ID: "m1", FullName: "Juan"}}

	first, err := syncer.Sync(context.Background(), newTestConfig(tenantID), &card)
	require.NoError(t, err)
	require.NotNil(t, first.AssignedUserID)
	assert.Equal(t, juan.ID, *first.AssignedUserID)

	directory.Invalidate(tenantID)
	card.Description = "📍 Destino: Madrid"
	second, err := syncer.Sync(context.Background(), newTestConfig(tenantID), &card)
	require.NoError(t, err)
	require.NotNil(t, second.AssignedUserID)
	assert.Equal(t, juan.ID, *second.AssignedUserID)

	lead, err := repo.FindByExternalID(context.Background(), tenantID, "card-1")
	require.NoError(t, err)
	require.NotNil(t, lead.AssignedUserID)
	assert.Equal(t, juan.ID, *lead.AssignedUserID)
	assert.Equal(t, "Juan", lead.AssignedMemberName)
	assert.Equal(t, "Madrid", lead.Destination)
	users.AssertNumberOfCalls(t, "FindActiveByTenant", 2)
}
