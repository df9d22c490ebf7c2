package app

import (
	"context"
	"testing"

	"github.com/rpattn/catalogaudit/internal/catalog"
	"github.com/rpattn/catalogaudit/internal/config"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithMemoryStorage(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory

	application, err := New(ctx, cfg, true, nil)
	require.NoError(t, err)
	defer application.Close()

	family, err := application.Catalog.CreateFamily(ctx, catalog.FamilyInput{Name: "Notebook"}, nil)
	require.NoError(t, err)
	category, err := application.Catalog.CreateCategory(ctx, catalog.CategoryInput{Name: "Laptops", Family: &family.ID}, nil)
	require.NoError(t, err)

	report, err := application.Checker.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	page, err := application.Ledger.GetEntityHistory(ctx, category.ID, nil, domain.Pagination{})
	require.NoError(t, err)
	assert.NotZero(t, page.Total)

	names := application.Registry.GetEntityNames(ctx, []domain.EntityRef{{EntityID: family.ID, EntityType: domain.EntityTypeFamily}})
	assert.Equal(t, "Notebook", names[domain.EntityKey(family.ID, domain.EntityTypeFamily)])
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "sqlite"
	_, err := New(context.Background(), cfg, false, nil)
	assert.ErrorContains(t, err, "unsupported storage driver")
}

func TestInTxWithMemoryStorage(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory

	application, err := New(ctx, cfg, false, nil)
	require.NoError(t, err)
	defer application.Close()

	category, err := application.Catalog.CreateCategory(ctx, catalog.CategoryInput{Name: "Laptops"}, nil)
	require.NoError(t, err)

	err = application.InTx(ctx, func(services Services) error {
		removed, err := services.Ledger.DeleteEntityHistory(ctx, category.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), removed)
		return services.Registry.DeleteEntity(ctx, category.ID, domain.EntityTypeCategory)
	})
	require.NoError(t, err)

	_, found, err := application.Registry.LookupEntityName(ctx, category.ID, domain.EntityTypeCategory)
	require.NoError(t, err)
	assert.False(t, found)
}
