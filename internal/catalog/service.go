// Package catalog performs category and family writes and drives the audit
// side effects after each one: link synchronization, history and registry.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpattn/catalogaudit/internal/auth"
	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/history"
	"github.com/rpattn/catalogaudit/internal/relationship"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

// Ledger is the history surface used after primary writes.
type Ledger interface {
	RecordHistory(ctx context.Context, params history.RecordParams) (domain.HistoryRecord, error)
	DeleteEntityHistory(ctx context.Context, entityID uuid.UUID) (int64, error)
}

// LinkSynchronizer keeps category and family references in agreement.
type LinkSynchronizer interface {
	SyncCategoryFamilyRelationship(ctx context.Context, categoryID uuid.UUID, newFamilyID, oldFamilyID *uuid.UUID, comment *string) relationship.SyncResult
	SyncFamilyCategoryRelationship(ctx context.Context, familyID uuid.UUID, newCategoryID, oldCategoryID *uuid.UUID, comment *string) relationship.SyncResult
}

// Registry is the entity registry surface used on deletion.
type Registry interface {
	DeactivateEntity(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) error
}

// CategoryInput carries the writable category fields.
type CategoryInput struct {
	Name        string
	Code        string
	Description string
	Family      *uuid.UUID
}

// CategoryPatch updates the non-nil fields. ClearFamily unsets the family.
type CategoryPatch struct {
	Name        *string
	Code        *string
	Description *string
	Family      *uuid.UUID
	ClearFamily bool
}

// FamilyInput carries the writable family fields.
type FamilyInput struct {
	Name        string
	Code        string
	Description string
	Category    *uuid.UUID
}

// FamilyPatch updates the non-nil fields. ClearCategory unsets the category.
type FamilyPatch struct {
	Name          *string
	Code          *string
	Description   *string
	Category      *uuid.UUID
	ClearCategory bool
}

// Service owns category and family writes.
type Service struct {
	categories repository.CategoryRepository
	families   repository.FamilyRepository
	ledger     Ledger
	sync       LinkSynchronizer
	registry   Registry
	logger     *slog.Logger
}

// NewService creates a catalog service. A nil logger falls back to slog.Default().
func NewService(categories repository.CategoryRepository, families repository.FamilyRepository, ledger Ledger, sync LinkSynchronizer, registry Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		categories: categories,
		families:   families,
		ledger:     ledger,
		sync:       sync,
		registry:   registry,
		logger:     logger.With("component", "catalog"),
	}
}

// CreateCategory stores a category and links its family.
func (s *Service) CreateCategory(ctx context.Context, input CategoryInput, comment *string) (domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("category name is required")
	}
	category := domain.NewCategory(name, strings.TrimSpace(input.Code))
	category.Description = input.Description
	category.Family = input.Family

	created, err := s.categories.Create(ctx, category)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	if created.Family != nil {
		s.sync.SyncCategoryFamilyRelationship(ctx, created.ID, created.Family, nil, comment)
	}
	s.recordBestEffort(ctx, created.ID, domain.EntityTypeCategory, domain.ActionCreate, nil, created, comment)
	return created, nil
}

// UpdateCategory applies the patch and resynchronizes the family link when it moved.
func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, patch CategoryPatch, comment *string) (domain.Category, error) {
	before, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to load category: %w", err)
	}
	next := before
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Code != nil {
		next.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	switch {
	case patch.ClearFamily:
		next.Family = nil
	case patch.Family != nil:
		next = next.WithFamily(patch.Family)
	}

	updated, err := s.categories.Update(ctx, next)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to update category: %w", err)
	}
	if !domain.SameID(before.Family, updated.Family) {
		s.sync.SyncCategoryFamilyRelationship(ctx, updated.ID, updated.Family, before.Family, comment)
	}
	s.recordBestEffort(ctx, updated.ID, domain.EntityTypeCategory, domain.ActionUpdate, before, updated, comment)
	return updated, nil
}

// DeleteCategory soft-deletes a category, or removes it and purges its history when hard is set.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID, hard bool, comment *string) error {
	before, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}

	if hard {
		if err := s.categories.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		if before.Family != nil {
			s.sync.SyncCategoryFamilyRelationship(ctx, id, nil, before.Family, comment)
		}
		if _, err := s.ledger.DeleteEntityHistory(ctx, id); err != nil {
			s.logger.Warn("history purge failed", "entity_id", id, "entity_type", domain.EntityTypeCategory, "error", err)
		}
		s.deactivateBestEffort(ctx, id, domain.EntityTypeCategory)
		return nil
	}

	next := before
	next.IsActive = false
	updated, err := s.categories.Update(ctx, next)
	if err != nil {
		return fmt.Errorf("failed to deactivate category: %w", err)
	}
	s.recordBestEffort(ctx, id, domain.EntityTypeCategory, domain.ActionDelete, before, updated, comment)
	s.deactivateBestEffort(ctx, id, domain.EntityTypeCategory)
	return nil
}

// RestoreCategory reactivates a soft-deleted category. Recording the restore
// upserts the registry record, which reactivates it too.
func (s *Service) RestoreCategory(ctx context.Context, id uuid.UUID, comment *string) (domain.Category, error) {
	before, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to load category: %w", err)
	}
	if before.IsActive {
		return before, nil
	}
	next := before
	next.IsActive = true
	restored, err := s.categories.Update(ctx, next)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to restore category: %w", err)
	}
	s.recordBestEffort(ctx, id, domain.EntityTypeCategory, domain.ActionRestore, before, restored, comment)
	return restored, nil
}

// CreateFamily stores a family and links its category.
func (s *Service) CreateFamily(ctx context.Context, input FamilyInput, comment *string) (domain.Family, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Family{}, fmt.Errorf("family name is required")
	}
	family := domain.NewFamily(name, strings.TrimSpace(input.Code))
	family.Description = input.Description
	family.Category = input.Category

	created, err := s.families.Create(ctx, family)
	if err != nil {
		return domain.Family{}, fmt.Errorf("failed to create family: %w", err)
	}
	if created.Category != nil {
		s.sync.SyncFamilyCategoryRelationship(ctx, created.ID, created.Category, nil, comment)
	}
	s.recordBestEffort(ctx, created.ID, domain.EntityTypeFamily, domain.ActionCreate, nil, created, comment)
	return created, nil
}

// UpdateFamily applies the patch and resynchronizes the category link when it moved.
func (s *Service) UpdateFamily(ctx context.Context, id uuid.UUID, patch FamilyPatch, comment *string) (domain.Family, error) {
	before, err := s.families.GetByID(ctx, id)
	if err != nil {
		return domain.Family{}, fmt.Errorf("failed to load family: %w", err)
	}
	next := before
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Code != nil {
		next.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	switch {
	case patch.ClearCategory:
		next.Category = nil
	case patch.Category != nil:
		next = next.WithCategory(patch.Category)
	}

	updated, err := s.families.Update(ctx, next)
	if err != nil {
		return domain.Family{}, fmt.Errorf("failed to update family: %w", err)
	}
	if !domain.SameID(before.Category, updated.Category) {
		s.sync.SyncFamilyCategoryRelationship(ctx, updated.ID, updated.Category, before.Category, comment)
	}
	s.recordBestEffort(ctx, updated.ID, domain.EntityTypeFamily, domain.ActionUpdate, before, updated, comment)
	return updated, nil
}

// recordBestEffort writes the history entry for a primary write. A failure is
// logged: the write itself has already succeeded.
func (s *Service) recordBestEffort(ctx context.Context, id uuid.UUID, entityType domain.EntityType, action domain.Action, before, after any, comment *string) {
	previous, err := domain.SnapshotOf(before)
	if err != nil {
		s.logger.Warn("failed to snapshot previous state", "entity_id", id, "error", err)
	}
	next, err := domain.SnapshotOf(after)
	if err != nil {
		s.logger.Warn("failed to snapshot new state", "entity_id", id, "error", err)
	}
	if _, err := s.ledger.RecordHistory(ctx, history.RecordParams{
		EntityID:     id,
		EntityType:   entityType,
		Action:       action,
		UserID:       auth.ActingUser(ctx),
		PreviousData: previous,
		NewData:      next,
		Comment:      comment,
	}); err != nil {
		s.logger.Warn("history write failed",
			"entity_id", id, "entity_type", entityType, "action", action, "error", err)
	}
}

func (s *Service) deactivateBestEffort(ctx context.Context, id uuid.UUID, entityType domain.EntityType) {
	if s.registry == nil {
		return
	}
	if err := s.registry.DeactivateEntity(ctx, id, entityType); err != nil {
		s.logger.Warn("registry deactivate failed", "entity_id", id, "entity_type", entityType, "error", err)
	}
}
