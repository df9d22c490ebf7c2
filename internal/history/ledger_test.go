package history

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/registry"
	"github.com/rpattn/catalogaudit/internal/repository"
	"github.com/rpattn/catalogaudit/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fixture struct {
	store    *memory.Store
	registry *registry.Service
	ledger   *Ledger
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	reg := registry.NewService(memory.NewEntityRegistryRepository(store), nil)
	return fixture{
		store:    store,
		registry: reg,
		ledger:   NewLedger(memory.NewHistoryRepository(store), reg, nil),
	}
}

func TestRecordHistoryCreateScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := uuid.New()
	categoryID := uuid.New()

	record, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID:     categoryID,
		EntityType:   domain.EntityTypeCategory,
		Action:       domain.ActionCreate,
		UserID:       user,
		PreviousData: domain.Snapshot{"name": "should be dropped"},
		NewData:      domain.Snapshot{"name": "Laptops", "code": "LAPTOPS"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ActionCreate, record.Action)
	assert.Empty(t, record.PreviousData)
	assert.NotNil(t, record.PreviousData)
	assert.Equal(t, "LAPTOPS", record.NewData["code"])
	assert.Equal(t, user, record.CreatedBy)
	assert.False(t, record.CreatedAt.IsZero())
	require.Len(t, record.AffectedEntities, 1)
	assert.Equal(t, domain.AffectedEntity{
		EntityID:   categoryID,
		EntityType: domain.EntityTypeCategory,
		EntityName: "Laptops",
		Role:       domain.RolePrimary,
	}, record.AffectedEntities[0])
	// Creation diff is the full new document.
	assert.Equal(t, "Laptops", record.Changes["name"])
	assert.Equal(t, "LAPTOPS", record.Changes["code"])

	// The primary entity is now in the registry.
	stored, err := f.registry.GetEntitiesByType(ctx, domain.EntityTypeCategory, true)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Laptops", stored[0].EntityName)
	require.NotNil(t, stored[0].EntityCode)
	assert.Equal(t, "LAPTOPS", *stored[0].EntityCode)
}

func TestRecordHistoryPrimaryAlwaysFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	primary := uuid.New()
	other := uuid.New()

	record, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID:   primary,
		EntityType: domain.EntityTypeFamily,
		EntityName: "Notebook Family",
		Action:     domain.ActionUpdate,
		UserID:     uuid.New(),
		AffectedEntities: []AffectedEntityInput{
			{EntityID: other, EntityType: domain.EntityTypeCategory, Role: domain.RolePrimary},
			{EntityID: primary, EntityType: domain.EntityTypeFamily},
		},
	})
	require.NoError(t, err)
	require.Len(t, record.AffectedEntities, 2)
	assert.Equal(t, domain.RolePrimary, record.AffectedEntities[0].Role)
	assert.Equal(t, primary, record.AffectedEntities[0].EntityID)
	assert.Equal(t, record.EntityType, record.AffectedEntities[0].EntityType)
	assert.Equal(t, domain.RoleSecondary, record.AffectedEntities[1].Role)
	assert.Equal(t, domain.FallbackEntityName(other, domain.EntityTypeCategory), record.AffectedEntities[1].EntityName)
}

func TestRecordHistoryNameResolutionOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := uuid.New()

	// Translation object in newData wins.
	record, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID:   id,
		EntityType: domain.EntityTypeAttribute,
		Action:     domain.ActionUpdate,
		UserID:     uuid.New(),
		NewData:    domain.Snapshot{"name": map[string]any{"en": "Color", "tr": "Renk"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renk", record.AffectedEntities[0].EntityName)

	// Without snapshots the registry name is used.
	record, err = f.ledger.RecordHistory(ctx, RecordParams{
		EntityID:   id,
		EntityType: domain.EntityTypeAttribute,
		Action:     domain.ActionDelete,
		UserID:     uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renk", record.AffectedEntities[0].EntityName)

	// Unknown entity falls back to type_id.
	unknown := uuid.New()
	record, err = f.ledger.RecordHistory(ctx, RecordParams{
		EntityID:   unknown,
		EntityType: domain.EntityTypeItem,
		Action:     domain.ActionDelete,
		UserID:     uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackEntityName(unknown, domain.EntityTypeItem), record.AffectedEntities[0].EntityName)
}

func TestRecordHistoryTrimsExplicitNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := uuid.New()
	familyID := uuid.New()

	record, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID:   id,
		EntityType: domain.EntityTypeCategory,
		EntityName: "  Laptops ",
		Action:     domain.ActionUpdate,
		UserID:     uuid.New(),
		AffectedEntities: []AffectedEntityInput{
			{EntityID: familyID, EntityType: domain.EntityTypeFamily, EntityName: " Notebook  "},
		},
	})
	require.NoError(t, err)
	require.Len(t, record.AffectedEntities, 2)
	assert.Equal(t, "Laptops", record.AffectedEntities[0].EntityName)
	assert.Equal(t, "Notebook", record.AffectedEntities[1].EntityName)
	assert.Equal(t, "Laptops", f.registry.GetEntityName(ctx, id, domain.EntityTypeCategory))

	// A blank explicit name resolves like an absent one.
	record, err = f.ledger.RecordHistory(ctx, RecordParams{
		EntityID:   id,
		EntityType: domain.EntityTypeCategory,
		EntityName: "   ",
		Action:     domain.ActionUpdate,
		UserID:     uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Laptops", record.AffectedEntities[0].EntityName)
}

func TestRecordHistoryUpdateDiff(t *testing.T) {
	f := newFixture(t)
	record, err := f.ledger.RecordHistory(context.Background(), RecordParams{
		EntityID:     uuid.New(),
		EntityType:   domain.EntityTypeCategory,
		Action:       domain.ActionUpdate,
		UserID:       uuid.New(),
		PreviousData: domain.Snapshot{"name": "Laptops", "code": "LAPTOPS"},
		NewData:      domain.Snapshot{"name": "Notebooks", "code": "LAPTOPS"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, record.Changes.Keys())
	assert.Equal(t, domain.FieldChange{From: "Laptops", To: "Notebooks"}, record.Changes["name"])
}

func TestRecordHistoryExplicitChangesKept(t *testing.T) {
	f := newFixture(t)
	explicit := domain.Changes{"custom": domain.FieldChange{From: 1, To: 2}}
	record, err := f.ledger.RecordHistory(context.Background(), RecordParams{
		EntityID:     uuid.New(),
		EntityType:   domain.EntityTypeRole,
		Action:       domain.ActionUpdate,
		UserID:       uuid.New(),
		PreviousData: domain.Snapshot{"name": "a"},
		NewData:      domain.Snapshot{"name": "b"},
		Changes:      explicit,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"custom"}, record.Changes.Keys())
}

func TestRecordHistoryRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.RecordHistory(context.Background(), RecordParams{
		EntityID: uuid.New(), EntityType: "widget", Action: domain.ActionCreate,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEntityType)

	_, err = f.ledger.RecordHistory(context.Background(), RecordParams{
		EntityID: uuid.New(), EntityType: domain.EntityTypeItem, Action: "archive",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestRecordHistorySurvivesRegistryFailure(t *testing.T) {
	store := memory.NewStore()
	ledger := NewLedger(memory.NewHistoryRepository(store), brokenRegistry{}, nil)
	id := uuid.New()

	record, err := ledger.RecordHistory(context.Background(), RecordParams{
		EntityID:   id,
		EntityType: domain.EntityTypeUser,
		Action:     domain.ActionUpdate,
		UserID:     uuid.New(),
		AffectedEntities: []AffectedEntityInput{
			{EntityID: uuid.New(), EntityType: domain.EntityTypeRole},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackEntityName(id, domain.EntityTypeUser), record.AffectedEntities[0].EntityName)
	assert.Len(t, record.AffectedEntities, 2)
}

func TestRecordHistoryPropagatesInsertFailure(t *testing.T) {
	store := memory.NewStore()
	reg := registry.NewService(memory.NewEntityRegistryRepository(store), nil)
	ledger := NewLedger(failingHistoryRepo{}, reg, nil)

	_, err := ledger.RecordHistory(context.Background(), RecordParams{
		EntityID:   uuid.New(),
		EntityType: domain.EntityTypeCategory,
		EntityName: "Laptops",
		Action:     domain.ActionCreate,
		UserID:     uuid.New(),
	})
	assert.ErrorIs(t, err, errInsert)
}

func TestGetEntityHistoryMatchesPrimaryOrAffected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := uuid.New()
	other := uuid.New()
	unrelated := uuid.New()

	asPrimary, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID: target, EntityType: domain.EntityTypeCategory, EntityName: "A",
		Action: domain.ActionCreate, UserID: uuid.New(),
	})
	require.NoError(t, err)
	asSecondary, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID: other, EntityType: domain.EntityTypeFamily, EntityName: "F",
		Action: domain.ActionUpdate, UserID: uuid.New(),
		AffectedEntities: []AffectedEntityInput{{EntityID: target, EntityType: domain.EntityTypeCategory}},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordHistory(ctx, RecordParams{
		EntityID: unrelated, EntityType: domain.EntityTypeFamily, EntityName: "G",
		Action: domain.ActionUpdate, UserID: uuid.New(),
	})
	require.NoError(t, err)

	page, err := f.ledger.GetEntityHistory(ctx, target, nil, domain.Pagination{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Records, 2)
	// Newest first.
	assert.Equal(t, asSecondary.ID, page.Records[0].ID)
	assert.Equal(t, asPrimary.ID, page.Records[1].ID)

	familyType := domain.EntityTypeFamily
	page, err = f.ledger.GetEntityHistory(ctx, target, &familyType, domain.Pagination{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestGetAllHistoryFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	store := memory.NewStore(memory.WithClock(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Hour)
	}))
	reg := registry.NewService(memory.NewEntityRegistryRepository(store), nil)
	ledger := NewLedger(memory.NewHistoryRepository(store), reg, nil)

	for i := 0; i < 5; i++ {
		_, err := ledger.RecordHistory(ctx, RecordParams{
			EntityID: uuid.New(), EntityType: domain.EntityTypeCategory, EntityName: "C",
			Action: domain.ActionCreate, UserID: uuid.New(),
		})
		require.NoError(t, err)
	}
	_, err := ledger.RecordHistory(ctx, RecordParams{
		EntityID: uuid.New(), EntityType: domain.EntityTypeFamily, EntityName: "F",
		Action: domain.ActionCreate, UserID: uuid.New(),
	})
	require.NoError(t, err)

	categoryType := domain.EntityTypeCategory
	page, err := ledger.GetAllHistory(ctx, domain.HistoryFilter{EntityType: &categoryType}, ledger.PageToPagination(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Records, 2)
	assert.True(t, page.Records[0].CreatedAt.After(page.Records[1].CreatedAt))

	all, err := ledger.GetAllHistory(ctx, domain.HistoryFilter{}, domain.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 6, all.Total)
	for i := 1; i < len(all.Records); i++ {
		assert.False(t, all.Records[i].CreatedAt.After(all.Records[i-1].CreatedAt))
	}

	end := all.Records[len(all.Records)-1].CreatedAt
	early, err := ledger.GetAllHistory(ctx, domain.HistoryFilter{EndDate: &end}, domain.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, early.Total)
}

func TestDeleteEntityHistoryScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	categoryID := uuid.New()
	familyID := uuid.New()

	_, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID: categoryID, EntityType: domain.EntityTypeCategory, Action: domain.ActionCreate,
		UserID: uuid.New(), NewData: domain.Snapshot{"name": "Laptops", "code": "LAPTOPS"},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordHistory(ctx, RecordParams{
		EntityID: familyID, EntityType: domain.EntityTypeFamily, EntityName: "F",
		Action: domain.ActionUpdate, UserID: uuid.New(),
		AffectedEntities: []AffectedEntityInput{{EntityID: categoryID, EntityType: domain.EntityTypeCategory}},
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordHistory(ctx, RecordParams{
		EntityID: familyID, EntityType: domain.EntityTypeFamily, EntityName: "F",
		Action: domain.ActionUpdate, UserID: uuid.New(),
	})
	require.NoError(t, err)

	removed, err := f.ledger.DeleteEntityHistory(ctx, categoryID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	page, err := f.ledger.GetEntityHistory(ctx, categoryID, nil, domain.Pagination{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	remaining, err := f.ledger.GetAllHistory(ctx, domain.HistoryFilter{}, domain.Pagination{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, remaining.Total)
}

func TestRecordRelationshipChangeWritesBothSides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := uuid.New()
	other := uuid.New()
	relID := uuid.New()

	records, err := f.ledger.RecordRelationshipChange(ctx, RelationshipChange{
		Source:           RelationshipEndpoint{EntityID: item, EntityType: domain.EntityTypeItem, EntityName: "Laptop X"},
		Target:           RelationshipEndpoint{EntityID: other, EntityType: domain.EntityTypeItem, EntityName: "Charger"},
		RelationshipType: "accessory",
		Action:           domain.ActionRelationshipAdd,
		UserID:           uuid.New(),
		RelationshipID:   &relID,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	for i, pair := range [][2]uuid.UUID{{item, other}, {other, item}} {
		record := records[i]
		assert.Equal(t, pair[0], record.EntityID)
		assert.Equal(t, domain.ActionRelationshipAdd, record.Action)
		require.Len(t, record.AffectedEntities, 2)
		assert.Equal(t, pair[1], record.AffectedEntities[1].EntityID)
		assert.Equal(t, "accessory", record.AdditionalInfo["relationshipType"])
		assert.Equal(t, relID.String(), record.AdditionalInfo["relationshipId"])
	}

	for _, id := range []uuid.UUID{item, other} {
		page, err := f.ledger.GetEntityHistory(ctx, id, nil, domain.Pagination{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	}

	_, err = f.ledger.RecordRelationshipChange(ctx, RelationshipChange{Action: domain.ActionUpdate})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	comment := "renamed"
	_, err := f.ledger.RecordHistory(ctx, RecordParams{
		EntityID: uuid.New(), EntityType: domain.EntityTypeCategory, Action: domain.ActionUpdate,
		UserID:       uuid.New(),
		PreviousData: domain.Snapshot{"name": map[string]any{"en": "Laptops"}},
		NewData:      domain.Snapshot{"name": map[string]any{"en": "Notebooks"}},
		Comment:      &comment,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	rows, err := f.ledger.ExportXLSX(ctx, domain.HistoryFilter{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()
	sheetRows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, sheetRows, 2)
	assert.Equal(t, "Created At", sheetRows[0][0])
	assert.Equal(t, "update", sheetRows[1][1])
	assert.Equal(t, "Notebooks", sheetRows[1][4])
	assert.Equal(t, "name.en", sheetRows[1][6])
	assert.Equal(t, "renamed", sheetRows[1][7])
}

func TestExportXLSXIgnoresRowsInsertedDuringExport(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := &insertingHistoryRepo{HistoryRepository: memory.NewHistoryRepository(store)}
	ledger := NewLedger(repo, nil, nil)

	for i := 0; i < exportPageSize+1; i++ {
		_, err := ledger.RecordHistory(ctx, RecordParams{
			EntityID: uuid.New(), EntityType: domain.EntityTypeItem, Action: domain.ActionCreate,
			UserID: uuid.New(), EntityName: "item",
		})
		require.NoError(t, err)
	}
	repo.insertOnList = true

	var buf bytes.Buffer
	rows, err := ledger.ExportXLSX(ctx, domain.HistoryFilter{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, exportPageSize+1, rows)

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()
	sheetRows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, row := range sheetRows[1:] {
		assert.False(t, seen[row[3]], "entity %s exported twice", row[3])
		seen[row[3]] = true
	}
	assert.Len(t, seen, exportPageSize+1)
}

// insertingHistoryRepo adds a newer record after every List call once armed.
type insertingHistoryRepo struct {
	repository.HistoryRepository
	insertOnList bool
}

func (r *insertingHistoryRepo) List(ctx context.Context, filter domain.HistoryFilter, page domain.Pagination) (domain.HistoryPage, error) {
	result, err := r.HistoryRepository.List(ctx, filter, page)
	if err != nil || !r.insertOnList {
		return result, err
	}
	if _, err := r.HistoryRepository.Insert(ctx, domain.HistoryRecord{
		EntityID: uuid.New(), EntityType: domain.EntityTypeItem, Action: domain.ActionCreate,
		CreatedBy: uuid.New(),
	}); err != nil {
		return domain.HistoryPage{}, err
	}
	return result, nil
}

var errInsert = errors.New("insert failed")

type brokenRegistry struct{}

func (brokenRegistry) UpsertEntity(context.Context, uuid.UUID, domain.EntityType, string, *string) (domain.EntityRecord, error) {
	return domain.EntityRecord{}, errors.New("registry down")
}

func (brokenRegistry) LookupEntityName(context.Context, uuid.UUID, domain.EntityType) (string, bool, error) {
	return "", false, errors.New("registry down")
}

type failingHistoryRepo struct{}

func (failingHistoryRepo) Insert(context.Context, domain.HistoryRecord) (domain.HistoryRecord, error) {
	return domain.HistoryRecord{}, errInsert
}

func (failingHistoryRepo) List(context.Context, domain.HistoryFilter, domain.Pagination) (domain.HistoryPage, error) {
	return domain.HistoryPage{}, errInsert
}

func (failingHistoryRepo) ListForEntity(context.Context, uuid.UUID, *domain.EntityType, domain.Pagination) (domain.HistoryPage, error) {
	return domain.HistoryPage{}, errInsert
}

func (failingHistoryRepo) DeleteForEntity(context.Context, uuid.UUID) (int64, error) {
	return 0, errInsert
}
