package relationship

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/metrics"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

const repairComment = "link consistency repair"

// Checker scans categories and families for broken bidirectional links.
type Checker struct {
	categories repository.CategoryRepository
	families   repository.FamilyRepository
	sync       *Synchronizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewChecker creates a checker. sync may be nil when repairs are never requested.
func NewChecker(categories repository.CategoryRepository, families repository.FamilyRepository, sync *Synchronizer, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		categories: categories,
		families:   families,
		sync:       sync,
		logger:     logger.With("component", "link_checker"),
		now:        time.Now,
	}
}

// Check reports every violation without changing anything.
func (c *Checker) Check(ctx context.Context) (domain.ConsistencyReport, error) {
	categories, err := c.categories.List(ctx)
	if err != nil {
		return domain.ConsistencyReport{}, fmt.Errorf("failed to list categories: %w", err)
	}
	families, err := c.families.List(ctx)
	if err != nil {
		return domain.ConsistencyReport{}, fmt.Errorf("failed to list families: %w", err)
	}

	report := domain.ConsistencyReport{
		CheckedAt:         c.now().UTC(),
		CategoriesScanned: len(categories),
		FamiliesScanned:   len(families),
		Violations:        findViolations(categories, families),
	}
	metrics.LinkViolations.Set(float64(len(report.Violations)))
	if !report.Consistent() {
		c.logger.Warn("category/family link violations found", "count", len(report.Violations))
	}
	return report, nil
}

// CheckAndRepair runs Check and then repairs each violation. The side holding
// the category reference wins; references to missing documents are cleared.
func (c *Checker) CheckAndRepair(ctx context.Context) (domain.ConsistencyReport, error) {
	report, err := c.Check(ctx)
	if err != nil {
		return report, err
	}
	if c.sync == nil || report.Consistent() {
		return report, nil
	}

	comment := repairComment
	for _, violation := range report.Violations {
		report.RepairsAttempted++
		if err := c.repair(ctx, violation, &comment); err != nil {
			c.logger.Warn("link repair failed",
				"kind", violation.Kind, "side", violation.Side, "error", err)
			continue
		}
		report.RepairsSucceeded++
	}
	return report, nil
}

func (c *Checker) repair(ctx context.Context, violation domain.LinkViolation, comment *string) error {
	switch violation.Side {
	case domain.SideCategory:
		if violation.CategoryID == nil {
			return fmt.Errorf("violation without category id")
		}
		if violation.Kind == domain.ViolationDanglingFamily {
			return c.sync.DetachCategory(ctx, *violation.CategoryID, comment)
		}
		category, err := c.categories.GetByID(ctx, *violation.CategoryID)
		if err != nil {
			return err
		}
		if category.Family == nil {
			return nil
		}
		return syncError(c.sync.SyncCategoryFamilyRelationship(ctx, category.ID, category.Family, nil, comment))

	case domain.SideFamily:
		if violation.FamilyID == nil {
			return fmt.Errorf("violation without family id")
		}
		if violation.Kind == domain.ViolationDanglingCategory {
			return c.sync.DetachFamily(ctx, *violation.FamilyID, comment)
		}
		family, err := c.families.GetByID(ctx, *violation.FamilyID)
		if err != nil {
			return err
		}
		if family.Category == nil {
			return nil
		}
		category, err := c.categories.GetByID(ctx, *family.Category)
		if err != nil {
			return err
		}
		switch {
		case category.Family == nil:
			return syncError(c.sync.SyncFamilyCategoryRelationship(ctx, family.ID, family.Category, nil, comment))
		case *category.Family != family.ID:
			return c.sync.DetachFamily(ctx, family.ID, comment)
		}
		return nil
	}
	return fmt.Errorf("unknown violation side %q", violation.Side)
}

func syncError(result SyncResult) error {
	if result.OK() {
		return nil
	}
	return fmt.Errorf("sync steps failed: %v", result.FailedSteps)
}

func findViolations(categories []domain.Category, families []domain.Family) []domain.LinkViolation {
	categoryByID := make(map[uuid.UUID]domain.Category, len(categories))
	for _, category := range categories {
		categoryByID[category.ID] = category
	}
	familyByID := make(map[uuid.UUID]domain.Family, len(families))
	for _, family := range families {
		familyByID[family.ID] = family
	}

	violations := []domain.LinkViolation{}
	for _, category := range categories {
		if category.Family == nil {
			continue
		}
		categoryID := category.ID
		familyID := *category.Family
		family, ok := familyByID[familyID]
		switch {
		case !ok:
			violations = append(violations, domain.LinkViolation{
				Kind: domain.ViolationDanglingFamily, Side: domain.SideCategory,
				CategoryID: &categoryID, FamilyID: &familyID,
				Detail: fmt.Sprintf("category %s references missing family %s", categoryID, familyID),
			})
		case family.Category == nil:
			violations = append(violations, domain.LinkViolation{
				Kind: domain.ViolationMissingBackReference, Side: domain.SideCategory,
				CategoryID: &categoryID, FamilyID: &familyID,
				Detail: fmt.Sprintf("family %s does not reference category %s", familyID, categoryID),
			})
		case *family.Category != categoryID:
			violations = append(violations, domain.LinkViolation{
				Kind: domain.ViolationMismatchedBackReference, Side: domain.SideCategory,
				CategoryID: &categoryID, FamilyID: &familyID,
				Detail: fmt.Sprintf("family %s references category %s instead of %s", familyID, *family.Category, categoryID),
			})
		}
	}

	for _, family := range families {
		if family.Category == nil {
			continue
		}
		familyID := family.ID
		categoryID := *family.Category
		category, ok := categoryByID[categoryID]
		switch {
		case !ok:
			violations = append(violations, domain.LinkViolation{
				Kind: domain.ViolationDanglingCategory, Side: domain.SideFamily,
				CategoryID: &categoryID, FamilyID: &familyID,
				Detail: fmt.Sprintf("family %s references missing category %s", familyID, categoryID),
			})
		case category.Family == nil:
			violations = append(violations, domain.LinkViolation{
				Kind: domain.ViolationMissingBackReference, Side: domain.SideFamily,
				CategoryID: &categoryID, FamilyID: &familyID,
				Detail: fmt.Sprintf("category %s does not reference family %s", categoryID, familyID),
			})
		case *category.Family != familyID:
			violations = append(violations, domain.LinkViolation{
				Kind: domain.ViolationMismatchedBackReference, Side: domain.SideFamily,
				CategoryID: &categoryID, FamilyID: &familyID,
				Detail: fmt.Sprintf("category %s references family %s instead of %s", categoryID, *category.Family, familyID),
			})
		}
	}
	return violations
}
