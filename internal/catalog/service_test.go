package catalog

import (
	"context"
	"testing"

	"github.com/rpattn/catalogaudit/internal/auth"
	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/history"
	"github.com/rpattn/catalogaudit/internal/registry"
	"github.com/rpattn/catalogaudit/internal/relationship"
	"github.com/rpattn/catalogaudit/internal/repository"
	"github.com/rpattn/catalogaudit/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogFixture struct {
	categories repository.CategoryRepository
	families   repository.FamilyRepository
	registry   *registry.Service
	ledger     *history.Ledger
	service    *Service
}

func newCatalogFixture() catalogFixture {
	store := memory.NewStore()
	categories := memory.NewCategoryRepository(store)
	families := memory.NewFamilyRepository(store)
	reg := registry.NewService(memory.NewEntityRegistryRepository(store), nil)
	ledger := history.NewLedger(memory.NewHistoryRepository(store), reg, nil)
	sync := relationship.NewSynchronizer(categories, families, ledger, nil)
	return catalogFixture{
		categories: categories,
		families:   families,
		registry:   reg,
		ledger:     ledger,
		service:    NewService(categories, families, ledger, sync, reg, nil),
	}
}

func (f catalogFixture) entityHistory(t *testing.T, id uuid.UUID) []domain.HistoryRecord {
	t.Helper()
	page, err := f.ledger.GetEntityHistory(context.Background(), id, nil, domain.Pagination{Limit: 100})
	require.NoError(t, err)
	return page.Records
}

func (f catalogFixture) activeNames(t *testing.T, entityType domain.EntityType, active bool) []string {
	t.Helper()
	records, err := f.registry.GetEntitiesByType(context.Background(), entityType, active)
	require.NoError(t, err)
	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.EntityName)
	}
	return names
}

func TestCreateCategoryRecordsHistory(t *testing.T) {
	user := uuid.New()
	ctx := auth.ContextWithUserID(context.Background(), user)
	f := newCatalogFixture()

	created, err := f.service.CreateCategory(ctx, CategoryInput{Name: " Laptops ", Code: "LAPTOPS"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Laptops", created.Name)

	records := f.entityHistory(t, created.ID)
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, domain.ActionCreate, record.Action)
	assert.Equal(t, user, record.CreatedBy)
	assert.Empty(t, record.PreviousData)
	assert.Equal(t, "LAPTOPS", record.NewData["code"])
	assert.Equal(t, "Laptops", record.AffectedEntities[0].EntityName)
	assert.Equal(t, []string{"Laptops"}, f.activeNames(t, domain.EntityTypeCategory, true))

	_, err = f.service.CreateCategory(ctx, CategoryInput{Name: "  "}, nil)
	assert.Error(t, err)
}

func TestCreateCategoryLinksFamily(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture()
	family, err := f.service.CreateFamily(ctx, FamilyInput{Name: "Notebook", Code: "NB"}, nil)
	require.NoError(t, err)

	category, err := f.service.CreateCategory(ctx, CategoryInput{Name: "Laptops", Family: &family.ID}, nil)
	require.NoError(t, err)

	linked, err := f.families.GetByID(ctx, family.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.Category)
	assert.Equal(t, category.ID, *linked.Category)
}

func TestUpdateCategoryMovesFamily(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture()
	f1, err := f.service.CreateFamily(ctx, FamilyInput{Name: "F1"}, nil)
	require.NoError(t, err)
	f2, err := f.service.CreateFamily(ctx, FamilyInput{Name: "F2"}, nil)
	require.NoError(t, err)
	category, err := f.service.CreateCategory(ctx, CategoryInput{Name: "A", Family: &f1.ID}, nil)
	require.NoError(t, err)

	comment := "reassign"
	renamed := "A2"
	updated, err := f.service.UpdateCategory(ctx, category.ID, CategoryPatch{Name: &renamed, Family: &f2.ID}, &comment)
	require.NoError(t, err)
	require.NotNil(t, updated.Family)
	assert.Equal(t, f2.ID, *updated.Family)

	old, err := f.families.GetByID(ctx, f1.ID)
	require.NoError(t, err)
	assert.Nil(t, old.Category)
	current, err := f.families.GetByID(ctx, f2.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Category)
	assert.Equal(t, category.ID, *current.Category)

	records := f.entityHistory(t, category.ID)
	require.NotEmpty(t, records)
	var update *domain.HistoryRecord
	for i := range records {
		if records[i].EntityID == category.ID && records[i].Action == domain.ActionUpdate {
			update = &records[i]
			break
		}
	}
	require.NotNil(t, update)
	assert.Contains(t, update.Changes, "name")
	assert.Contains(t, update.Changes, "family")
	require.NotNil(t, update.Comment)
	assert.Equal(t, comment, *update.Comment)
}

func TestUpdateFamilyClearsCategory(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture()
	category, err := f.service.CreateCategory(ctx, CategoryInput{Name: "C"}, nil)
	require.NoError(t, err)
	family, err := f.service.CreateFamily(ctx, FamilyInput{Name: "F", Category: &category.ID}, nil)
	require.NoError(t, err)

	linked, err := f.categories.GetByID(ctx, category.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.Family)

	_, err = f.service.UpdateFamily(ctx, family.ID, FamilyPatch{ClearCategory: true}, nil)
	require.NoError(t, err)

	unlinked, err := f.categories.GetByID(ctx, category.ID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.Family)
}

func TestSoftDeleteAndRestoreCategory(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture()
	category, err := f.service.CreateCategory(ctx, CategoryInput{Name: "Laptops", Code: "LAPTOPS"}, nil)
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteCategory(ctx, category.ID, false, nil))

	stored, err := f.categories.GetByID(ctx, category.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Empty(t, f.activeNames(t, domain.EntityTypeCategory, true))
	assert.Equal(t, []string{"Laptops"}, f.activeNames(t, domain.EntityTypeCategory, false))

	restored, err := f.service.RestoreCategory(ctx, category.ID, nil)
	require.NoError(t, err)
	assert.True(t, restored.IsActive)
	assert.Equal(t, []string{"Laptops"}, f.activeNames(t, domain.EntityTypeCategory, true))

	records := f.entityHistory(t, category.ID)
	actions := make([]domain.Action, 0, len(records))
	for _, record := range records {
		actions = append(actions, record.Action)
	}
	assert.Equal(t, []domain.Action{domain.ActionRestore, domain.ActionDelete, domain.ActionCreate}, actions)
}

func TestHardDeleteCategoryPurgesHistory(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture()
	family, err := f.service.CreateFamily(ctx, FamilyInput{Name: "F"}, nil)
	require.NoError(t, err)
	category, err := f.service.CreateCategory(ctx, CategoryInput{Name: "Laptops", Family: &family.ID}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, f.entityHistory(t, category.ID))

	require.NoError(t, f.service.DeleteCategory(ctx, category.ID, true, nil))

	_, err = f.categories.GetByID(ctx, category.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.entityHistory(t, category.ID))

	unlinked, err := f.families.GetByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.Category)
	assert.Equal(t, []string{"Laptops"}, f.activeNames(t, domain.EntityTypeCategory, false))

	// The family keeps its own history.
	assert.NotEmpty(t, f.entityHistory(t, family.ID))
}

func TestDeleteMissingCategory(t *testing.T) {
	f := newCatalogFixture()
	err := f.service.DeleteCategory(context.Background(), uuid.New(), false, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
