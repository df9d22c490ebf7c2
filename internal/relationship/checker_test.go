package relationship

import (
	"context"
	"testing"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReportsViolations(t *testing.T) {
	ctx := context.Background()
	f := newLinkFixture(t)
	missing := uuid.New()

	linked := f.family(t, "Linked", nil)
	ok := f.category(t, "OK", &linked.ID)
	_, err := f.families.SetCategory(ctx, linked.ID, &ok.ID)
	require.NoError(t, err)

	f.category(t, "Dangling", &missing)
	lonely := f.family(t, "Lonely", nil)
	f.category(t, "NoBackRef", &lonely.ID)

	checker := NewChecker(f.categories, f.families, nil, nil)
	report, err := checker.Check(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.CategoriesScanned)
	assert.Equal(t, 2, report.FamiliesScanned)
	require.Len(t, report.Violations, 2)
	kinds := []domain.LinkViolationKind{report.Violations[0].Kind, report.Violations[1].Kind}
	assert.ElementsMatch(t, []domain.LinkViolationKind{
		domain.ViolationDanglingFamily,
		domain.ViolationMissingBackReference,
	}, kinds)
	assert.False(t, report.Consistent())
	assert.Zero(t, report.RepairsAttempted)
}

func TestCheckAndRepairRestoresInvariant(t *testing.T) {
	ctx := context.Background()
	f := newLinkFixture(t)
	missing := uuid.New()

	dangling := f.category(t, "Dangling", &missing)
	lonely := f.family(t, "Lonely", nil)
	noBackRef := f.category(t, "NoBackRef", &lonely.ID)

	orphanCategory := f.category(t, "Orphan", nil)
	pointing := f.family(t, "Pointing", &orphanCategory.ID)

	elsewhere := f.family(t, "Elsewhere", nil)
	claimed := f.category(t, "Claimed", &elsewhere.ID)
	_, err := f.families.SetCategory(ctx, elsewhere.ID, &claimed.ID)
	require.NoError(t, err)
	stale := f.family(t, "Stale", &claimed.ID)

	checker := NewChecker(f.categories, f.families, f.sync, nil)
	report, err := checker.CheckAndRepair(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Violations)
	assert.Equal(t, len(report.Violations), report.RepairsAttempted)
	assert.Equal(t, report.RepairsAttempted, report.RepairsSucceeded)

	after, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, after.Violations)

	got, err := f.categories.GetByID(ctx, dangling.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Family)

	f.requireLinked(t, noBackRef.ID, lonely.ID)
	f.requireLinked(t, orphanCategory.ID, pointing.ID)
	f.requireLinked(t, claimed.ID, elsewhere.ID)

	detached, err := f.families.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.Category)

	page, err := f.ledger.GetEntityHistory(ctx, dangling.ID, nil, domain.Pagination{Limit: 10})
	require.NoError(t, err)
	require.NotZero(t, page.Total)
	require.NotNil(t, page.Records[0].Comment)
	assert.Equal(t, repairComment, *page.Records[0].Comment)
}

func TestCheckConsistentCatalog(t *testing.T) {
	f := newLinkFixture(t)
	checker := NewChecker(f.categories, f.families, f.sync, nil)
	report, err := checker.CheckAndRepair(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.NotNil(t, report.Violations)
}
