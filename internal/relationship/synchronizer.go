// Package relationship keeps the Category.family and Family.category
// references pointing at each other.
package relationship

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpattn/catalogaudit/internal/auth"
	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/history"
	"github.com/rpattn/catalogaudit/internal/metrics"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

// HistoryRecorder is the ledger operation the synchronizer writes through.
type HistoryRecorder interface {
	RecordHistory(ctx context.Context, params history.RecordParams) (domain.HistoryRecord, error)
}

// SyncResult lists the steps that ran and the ones that failed.
type SyncResult struct {
	Steps       []string
	FailedSteps []string
}

// OK reports whether every attempted step succeeded.
func (r SyncResult) OK() bool {
	return len(r.FailedSteps) == 0
}

// Synchronizer runs the link maintenance steps. Each step is independent: a
// failure is logged and the remaining steps still run.
type Synchronizer struct {
	categories repository.CategoryRepository
	families   repository.FamilyRepository
	recorder   HistoryRecorder
	logger     *slog.Logger
}

// NewSynchronizer creates a synchronizer. A nil logger falls back to slog.Default().
func NewSynchronizer(categories repository.CategoryRepository, families repository.FamilyRepository, recorder HistoryRecorder, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		categories: categories,
		families:   families,
		recorder:   recorder,
		logger:     logger.With("component", "relationship"),
	}
}

// SyncCategoryFamilyRelationship reconciles families after categoryID's family
// reference moved from oldFamilyID to newFamilyID. The category wins: any other
// category holding newFamilyID is evicted.
func (s *Synchronizer) SyncCategoryFamilyRelationship(ctx context.Context, categoryID uuid.UUID, newFamilyID, oldFamilyID *uuid.UUID, comment *string) SyncResult {
	var result SyncResult

	if oldFamilyID != nil && !domain.SameID(oldFamilyID, newFamilyID) {
		s.step(ctx, &result, "unlink_old_family", func(ctx context.Context) error {
			return s.unlinkFamily(ctx, *oldFamilyID, categoryID, comment)
		})
	}
	if newFamilyID == nil {
		return result
	}

	target, err := s.families.GetByID(ctx, *newFamilyID)
	s.record(&result, "load_target_family", err)
	if err != nil {
		s.logger.Warn("sync step failed", "step", "load_target_family",
			"entity_id", *newFamilyID, "entity_type", domain.EntityTypeFamily, "error", err)
		return result
	}

	for _, holder := range s.categoryHolders(ctx, &result, target, categoryID) {
		s.step(ctx, &result, "evict_category", func(ctx context.Context) error {
			return s.evictCategory(ctx, holder, target.ID, categoryID, comment)
		})
	}

	if !domain.SameID(target.Category, &categoryID) {
		s.step(ctx, &result, "link_target_family", func(ctx context.Context) error {
			return s.linkFamily(ctx, target, categoryID, comment)
		})
	}
	return result
}

// SyncFamilyCategoryRelationship is the mirror of SyncCategoryFamilyRelationship,
// driven by a change of familyID's category reference.
func (s *Synchronizer) SyncFamilyCategoryRelationship(ctx context.Context, familyID uuid.UUID, newCategoryID, oldCategoryID *uuid.UUID, comment *string) SyncResult {
	var result SyncResult

	if oldCategoryID != nil && !domain.SameID(oldCategoryID, newCategoryID) {
		s.step(ctx, &result, "unlink_old_category", func(ctx context.Context) error {
			return s.unlinkCategory(ctx, *oldCategoryID, familyID, comment)
		})
	}
	if newCategoryID == nil {
		return result
	}

	target, err := s.categories.GetByID(ctx, *newCategoryID)
	s.record(&result, "load_target_category", err)
	if err != nil {
		s.logger.Warn("sync step failed", "step", "load_target_category",
			"entity_id", *newCategoryID, "entity_type", domain.EntityTypeCategory, "error", err)
		return result
	}

	for _, holder := range s.familyHolders(ctx, &result, target, familyID) {
		s.step(ctx, &result, "evict_family", func(ctx context.Context) error {
			return s.evictFamily(ctx, holder, target.ID, familyID, comment)
		})
	}

	if !domain.SameID(target.Family, &familyID) {
		s.step(ctx, &result, "link_target_category", func(ctx context.Context) error {
			return s.linkCategory(ctx, target, familyID, comment)
		})
	}
	return result
}

func (s *Synchronizer) step(ctx context.Context, result *SyncResult, name string, fn func(context.Context) error) {
	err := fn(ctx)
	s.record(result, name, err)
	if err != nil {
		s.logger.Warn("sync step failed", "step", name, "error", err)
	}
}

func (s *Synchronizer) record(result *SyncResult, name string, err error) {
	result.Steps = append(result.Steps, name)
	if err != nil {
		result.FailedSteps = append(result.FailedSteps, name)
	}
	metrics.SyncStepsTotal.WithLabelValues(name, metrics.Outcome(err)).Inc()
}

// categoryHolders lists every other category pointing at the target family,
// either through the family's back-reference or through its own family field.
func (s *Synchronizer) categoryHolders(ctx context.Context, result *SyncResult, target domain.Family, keep uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{keep: {}}
	var holders []uuid.UUID
	if target.Category != nil {
		if _, ok := seen[*target.Category]; !ok {
			seen[*target.Category] = struct{}{}
			holders = append(holders, *target.Category)
		}
	}
	referencing, err := s.categories.ListByFamily(ctx, target.ID)
	s.record(result, "list_family_holders", err)
	if err != nil {
		s.logger.Warn("sync step failed", "step", "list_family_holders",
			"entity_id", target.ID, "entity_type", domain.EntityTypeFamily, "error", err)
	}
	for _, category := range referencing {
		if _, ok := seen[category.ID]; !ok {
			seen[category.ID] = struct{}{}
			holders = append(holders, category.ID)
		}
	}
	return holders
}

func (s *Synchronizer) familyHolders(ctx context.Context, result *SyncResult, target domain.Category, keep uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{keep: {}}
	var holders []uuid.UUID
	if target.Family != nil {
		if _, ok := seen[*target.Family]; !ok {
			seen[*target.Family] = struct{}{}
			holders = append(holders, *target.Family)
		}
	}
	referencing, err := s.families.ListByCategory(ctx, target.ID)
	s.record(result, "list_category_holders", err)
	if err != nil {
		s.logger.Warn("sync step failed", "step", "list_category_holders",
			"entity_id", target.ID, "entity_type", domain.EntityTypeCategory, "error", err)
	}
	for _, family := range referencing {
		if _, ok := seen[family.ID]; !ok {
			seen[family.ID] = struct{}{}
			holders = append(holders, family.ID)
		}
	}
	return holders
}

// unlinkFamily clears familyID's back-reference if it still points at categoryID.
func (s *Synchronizer) unlinkFamily(ctx context.Context, familyID, categoryID uuid.UUID, comment *string) error {
	before, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return fmt.Errorf("failed to load old family: %w", err)
	}
	if before.Category == nil || *before.Category != categoryID {
		return nil
	}
	after, err := s.families.SetCategory(ctx, familyID, nil)
	if err != nil {
		return fmt.Errorf("failed to clear family category: %w", err)
	}
	return s.recordFamilyUpdate(ctx, before, after, categoryID, "removed", comment, nil)
}

// evictCategory clears holderID's family field when it still points at familyID.
func (s *Synchronizer) evictCategory(ctx context.Context, holderID, familyID, winnerID uuid.UUID, comment *string) error {
	before, err := s.categories.GetByID(ctx, holderID)
	if err != nil {
		return fmt.Errorf("failed to load evicted category: %w", err)
	}
	if before.Family == nil || *before.Family != familyID {
		return nil
	}
	after, err := s.categories.SetFamily(ctx, holderID, nil)
	if err != nil {
		return fmt.Errorf("failed to clear category family: %w", err)
	}
	return s.recordCategoryUpdate(ctx, before, after, familyID, "evicted", comment, &winnerID)
}

func (s *Synchronizer) linkFamily(ctx context.Context, before domain.Family, categoryID uuid.UUID, comment *string) error {
	after, err := s.families.SetCategory(ctx, before.ID, &categoryID)
	if err != nil {
		return fmt.Errorf("failed to set family category: %w", err)
	}
	return s.recordFamilyUpdate(ctx, before, after, categoryID, "added", comment, nil)
}

func (s *Synchronizer) unlinkCategory(ctx context.Context, categoryID, familyID uuid.UUID, comment *string) error {
	before, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to load old category: %w", err)
	}
	if before.Family == nil || *before.Family != familyID {
		return nil
	}
	after, err := s.categories.SetFamily(ctx, categoryID, nil)
	if err != nil {
		return fmt.Errorf("failed to clear category family: %w", err)
	}
	return s.recordCategoryUpdate(ctx, before, after, familyID, "removed", comment, nil)
}

func (s *Synchronizer) evictFamily(ctx context.Context, holderID, categoryID, winnerID uuid.UUID, comment *string) error {
	before, err := s.families.GetByID(ctx, holderID)
	if err != nil {
		return fmt.Errorf("failed to load evicted family: %w", err)
	}
	if before.Category == nil || *before.Category != categoryID {
		return nil
	}
	after, err := s.families.SetCategory(ctx, holderID, nil)
	if err != nil {
		return fmt.Errorf("failed to clear family category: %w", err)
	}
	return s.recordFamilyUpdate(ctx, before, after, categoryID, "evicted", comment, &winnerID)
}

func (s *Synchronizer) linkCategory(ctx context.Context, before domain.Category, familyID uuid.UUID, comment *string) error {
	after, err := s.categories.SetFamily(ctx, before.ID, &familyID)
	if err != nil {
		return fmt.Errorf("failed to set category family: %w", err)
	}
	return s.recordCategoryUpdate(ctx, before, after, familyID, "added", comment, nil)
}

func (s *Synchronizer) recordFamilyUpdate(ctx context.Context, before, after domain.Family, categoryID uuid.UUID, link string, comment *string, winner *uuid.UUID) error {
	info := map[string]any{
		"relationshipSync": true,
		"field":            "category",
		"link":             link,
		"categoryId":       categoryID.String(),
	}
	if winner != nil {
		info["replacedBy"] = winner.String()
	}
	return s.recordUpdate(ctx, after.ID, domain.EntityTypeFamily, after.Name, before, after, categoryID, domain.EntityTypeCategory, info, comment)
}

func (s *Synchronizer) recordCategoryUpdate(ctx context.Context, before, after domain.Category, familyID uuid.UUID, link string, comment *string, winner *uuid.UUID) error {
	info := map[string]any{
		"relationshipSync": true,
		"field":            "family",
		"link":             link,
		"familyId":         familyID.String(),
	}
	if winner != nil {
		info["replacedBy"] = winner.String()
	}
	return s.recordUpdate(ctx, after.ID, domain.EntityTypeCategory, after.Name, before, after, familyID, domain.EntityTypeFamily, info, comment)
}

func (s *Synchronizer) recordUpdate(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, name string, before, after any, otherID uuid.UUID, otherType domain.EntityType, info map[string]any, comment *string) error {
	if s.recorder == nil {
		return nil
	}
	previous, err := domain.SnapshotOf(before)
	if err != nil {
		return err
	}
	next, err := domain.SnapshotOf(after)
	if err != nil {
		return err
	}
	_, err = s.recorder.RecordHistory(ctx, history.RecordParams{
		EntityID:       entityID,
		EntityType:     entityType,
		EntityName:     name,
		Action:         domain.ActionUpdate,
		UserID:         auth.ActingUser(ctx),
		PreviousData:   previous,
		NewData:        next,
		Comment:        comment,
		AdditionalInfo: info,
		AffectedEntities: []history.AffectedEntityInput{{
			EntityID:   otherID,
			EntityType: otherType,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to record sync history: %w", err)
	}
	return nil
}

// DetachCategory clears a category's family reference without touching the family.
func (s *Synchronizer) DetachCategory(ctx context.Context, categoryID uuid.UUID, comment *string) error {
	before, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}
	if before.Family == nil {
		return nil
	}
	after, err := s.categories.SetFamily(ctx, categoryID, nil)
	if err != nil {
		return fmt.Errorf("failed to clear category family: %w", err)
	}
	return s.recordCategoryUpdate(ctx, before, after, *before.Family, "removed", comment, nil)
}

// DetachFamily clears a family's category reference without touching the category.
func (s *Synchronizer) DetachFamily(ctx context.Context, familyID uuid.UUID, comment *string) error {
	before, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return fmt.Errorf("failed to load family: %w", err)
	}
	if before.Category == nil {
		return nil
	}
	after, err := s.families.SetCategory(ctx, familyID, nil)
	if err != nil {
		return fmt.Errorf("failed to clear family category: %w", err)
	}
	return s.recordFamilyUpdate(ctx, before, after, *before.Category, "removed", comment, nil)
}
