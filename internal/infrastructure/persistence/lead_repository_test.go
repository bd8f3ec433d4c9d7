package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

func newTestLead(tenantID uuid.UUID, externalID string) *integration.Lead {
	return &integration.Lead{
		TenantID:        tenantID,
		Source:          integration.LeadSourceTrello,
		ExternalID:      externalID,
		BoardID:         "board-1",
		ListID:          "list-1",
		Status:          integration.DefaultLeadStatus,
		Region:          integration.RegionOther,
		ContactName:     "Ana Pérez",
		Destination:     "Cancún",
		ExtractedFields: map[string]string{integration.FieldDestination: "Cancún"},
		RawPayload:      json.RawMessage(`{"id":"` + externalID + `","unknown":true}`),
		LastSyncedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestGormLeadRepository_UpsertCreatesThenUpdates(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLeadRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()

	lead := newTestLead(tenantID, "card-1")
	lead.BudgetAmount = decimal.NewNullDecimal(decimal.NewFromInt(1500))
	lead.BudgetCurrency = "USD"
	created, err := repo.Upsert(ctx, lead)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := lead.ID
	firstCreatedAt := lead.CreatedAt

	again := newTestLead(tenantID, "card-1")
	again.Status = integration.LeadStatus("WON")
	again.Destination = "Madrid"
	created, err = repo.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, again.ID)
	assert.True(t, firstCreatedAt.Equal(again.CreatedAt))

	stored, err := repo.FindByExternalID(ctx, tenantID, "card-1")
	require.NoError(t, err)
	assert.Equal(t, firstID, stored.ID)
	assert.Equal(t, integration.LeadStatus("WON"), stored.Status)
	assert.Equal(t, "Madrid", stored.Destination)
	assert.Equal(t, "Cancún", stored.ExtractedFields[integration.FieldDestination])
	assert.JSONEq(t, `{"id":"card-1","unknown":true}`, string(stored.RawPayload))
	assert.False(t, stored.BudgetAmount.Valid, "second write carried no budget")

	count, err := repo.CountByExternalID(ctx, tenantID, "card-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormLeadRepository_UpsertKeepsAssignment(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLeadRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()
	userID := uuid.New()

	lead := newTestLead(tenantID, "card-1")
	lead.AssignedUserID = &userID
	lead.AssignedMemberName = "Juan"
	_, err := repo.Upsert(ctx, lead)
	require.NoError(t, err)

	unresolved := newTestLead(tenantID, "card-1")
	unresolved.Destination = "Madrid"
	unresolved.KeepAssignment = true
	created, err := repo.Upsert(ctx, unresolved)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, unresolved.AssignedUserID)
	assert.Equal(t, userID, *unresolved.AssignedUserID)

	stored, err := repo.FindByExternalID(ctx, tenantID, "card-1")
	require.NoError(t, err)
	assert.Equal(t, "Madrid", stored.Destination)
	require.NotNil(t, stored.AssignedUserID)
	assert.Equal(t, userID, *stored.AssignedUserID)
	assert.Equal(t, "Juan", stored.AssignedMemberName)

	cleared := newTestLead(tenantID, "card-1")
	_, err = repo.Upsert(ctx, cleared)
	require.NoError(t, err)
	stored, err = repo.FindByExternalID(ctx, tenantID, "card-1")
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedUserID, "a resolved empty assignment overwrites")
	assert.Empty(t, stored.AssignedMemberName)
}

func TestGormLeadRepository_UpsertIsTenantScoped(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLeadRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Upsert(ctx, newTestLead(uuid.New(), "card-1"))
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Upsert(ctx, newTestLead(uuid.New(), "card-1"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestGormLeadRepository_ConcurrentUpsertSingleRow(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLeadRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.Upsert(ctx, newTestLead(tenantID, "card-race"))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	count, err := repo.CountByExternalID(ctx, tenantID, "card-race")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormLeadRepository_Delete(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLeadRepository(db.DB)
	ctx := context.Background()
	tenantID := uuid.New()

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Upsert(ctx, newTestLead(tenantID, id))
		require.NoError(t, err)
	}
	manual := newTestLead(tenantID, "manual-1")
	manual.Source = integration.LeadSourceManual
	_, err := repo.Upsert(ctx, manual)
	require.NoError(t, err)

	deleted, err := repo.DeleteByExternalID(ctx, tenantID, "a")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.DeleteByExternalID(ctx, tenantID, "a")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.FindByExternalID(ctx, tenantID, "a")
	assert.ErrorIs(t, err, integration.ErrLeadNotFound)

	n, err := repo.DeleteBySource(ctx, tenantID, integration.LeadSourceTrello)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	remaining, err := repo.FindByExternalID(ctx, tenantID, "manual-1")
	require.NoError(t, err)
	assert.Equal(t, integration.LeadSourceManual, remaining.Source)
}

func TestGormLeadRepository_FindQueryError(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormLeadRepository(db.DB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "leads"`)).
		WillReturnError(errors.New("timeout"))

	_, err := repo.FindByExternalID(context.Background(), uuid.New(), "card-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, integration.ErrLeadNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLeadRepository_UpsertInsertError(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormLeadRepository(db.DB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "leads"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	created, err := repo.Upsert(context.Background(), newTestLead(uuid.New(), "card-1"))
	require.Error(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
