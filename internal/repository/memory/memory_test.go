package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return fixed }))
	first := store.tick()
	second := store.tick()
	assert.Equal(t, fixed, first)
	assert.True(t, second.After(first))
}

func TestHistoryRecordsAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(NewStore())
	id := uuid.New()

	stored, err := repo.Insert(ctx, domain.HistoryRecord{
		EntityID:   id,
		EntityType: domain.EntityTypeItem,
		Action:     domain.ActionCreate,
		NewData:    domain.Snapshot{"name": "Laptop X"},
		AffectedEntities: []domain.AffectedEntity{
			{EntityID: id, EntityType: domain.EntityTypeItem, EntityName: "Laptop X", Role: domain.RolePrimary},
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.NotNil(t, stored.PreviousData)
	assert.NotNil(t, stored.Changes)

	stored.NewData["name"] = "mutated"
	stored.AffectedEntities[0].EntityName = "mutated"

	page, err := repo.ListForEntity(ctx, id, nil, domain.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Laptop X", page.Records[0].NewData["name"])
	assert.Equal(t, "Laptop X", page.Records[0].AffectedEntities[0].EntityName)
}

func TestHistoryPaginationBeyondEnd(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(NewStore())
	for i := 0; i < 3; i++ {
		_, err := repo.Insert(ctx, domain.HistoryRecord{EntityID: uuid.New(), EntityType: domain.EntityTypeRole, Action: domain.ActionCreate})
		require.NoError(t, err)
	}
	page, err := repo.List(ctx, domain.HistoryFilter{}, domain.Pagination{Limit: 2, Skip: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Empty(t, page.Records)
}

func TestCategoryListByFamily(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	categories := NewCategoryRepository(store)
	familyID := uuid.New()

	a, err := categories.Create(ctx, domain.NewCategory("A", "A").WithFamily(&familyID))
	require.NoError(t, err)
	_, err = categories.Create(ctx, domain.NewCategory("B", "B"))
	require.NoError(t, err)

	holders, err := categories.ListByFamily(ctx, familyID)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, a.ID, holders[0].ID)

	_, err = categories.SetFamily(ctx, a.ID, nil)
	require.NoError(t, err)
	holders, err = categories.ListByFamily(ctx, familyID)
	require.NoError(t, err)
	assert.Empty(t, holders)

	_, err = categories.SetFamily(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntityRegistryGetMany(t *testing.T) {
	ctx := context.Background()
	repo := NewEntityRegistryRepository(NewStore())
	id := uuid.New()
	_, err := repo.Upsert(ctx, domain.EntityUpsert{EntityID: id, EntityType: domain.EntityTypeFamily, EntityName: "F"})
	require.NoError(t, err)

	records, err := repo.GetMany(ctx, []domain.EntityRef{
		{EntityID: id, EntityType: domain.EntityTypeFamily},
		{EntityID: id, EntityType: domain.EntityTypeCategory},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "F", records[0].EntityName)
}
