package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

type categoryRepository struct {
	store *Store
}

var _ repository.CategoryRepository = (*categoryRepository)(nil)

// NewCategoryRepository returns a category repository over the store.
func NewCategoryRepository(store *Store) repository.CategoryRepository {
	return &categoryRepository{store: store}
}

func (r *categoryRepository) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	if _, exists := r.store.categories[category.ID]; exists {
		return domain.Category{}, fmt.Errorf("failed to create category: id %s already exists", category.ID)
	}
	now := r.store.tick()
	category.CreatedAt = now
	category.UpdatedAt = now
	category.Family = copyID(category.Family)
	r.store.categories[category.ID] = category
	return category.WithFamily(category.Family), nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	category, ok := r.store.categories[id]
	if !ok {
		return domain.Category{}, fmt.Errorf("failed to get category: %w", domain.ErrNotFound)
	}
	return copyCategory(category), nil
}

func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	return r.filter(func(domain.Category) bool { return true }), nil
}

func (r *categoryRepository) ListByFamily(ctx context.Context, familyID uuid.UUID) ([]domain.Category, error) {
	return r.filter(func(category domain.Category) bool {
		return category.Family != nil && *category.Family == familyID
	}), nil
}

func (r *categoryRepository) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.categories[category.ID]
	if !ok {
		return domain.Category{}, fmt.Errorf("failed to update category: %w", domain.ErrNotFound)
	}
	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = r.store.tick()
	category.Family = copyID(category.Family)
	r.store.categories[category.ID] = category
	return copyCategory(category), nil
}

func (r *categoryRepository) SetFamily(ctx context.Context, categoryID uuid.UUID, familyID *uuid.UUID) (domain.Category, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	category, ok := r.store.categories[categoryID]
	if !ok {
		return domain.Category{}, fmt.Errorf("failed to set category family: %w", domain.ErrNotFound)
	}
	category.Family = copyID(familyID)
	category.UpdatedAt = r.store.tick()
	r.store.categories[categoryID] = category
	return copyCategory(category), nil
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.categories[id]; !ok {
		return fmt.Errorf("failed to delete category: %w", domain.ErrNotFound)
	}
	delete(r.store.categories, id)
	return nil
}

func (r *categoryRepository) filter(match func(domain.Category) bool) []domain.Category {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []domain.Category{}
	for _, category := range r.store.categories {
		if match(category) {
			out = append(out, copyCategory(category))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func copyCategory(category domain.Category) domain.Category {
	out := category
	out.Family = copyID(category.Family)
	return out
}

type familyRepository struct {
	store *Store
}

var _ repository.FamilyRepository = (*familyRepository)(nil)

// NewFamilyRepository returns a family repository over the store.
func NewFamilyRepository(store *Store) repository.FamilyRepository {
	return &familyRepository{store: store}
}

func (r *familyRepository) Create(ctx context.Context, family domain.Family) (domain.Family, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if family.ID == uuid.Nil {
		family.ID = uuid.New()
	}
	if _, exists := r.store.families[family.ID]; exists {
		return domain.Family{}, fmt.Errorf("failed to create family: id %s already exists", family.ID)
	}
	now := r.store.tick()
	family.CreatedAt = now
	family.UpdatedAt = now
	family.Category = copyID(family.Category)
	r.store.families[family.ID] = family
	return copyFamily(family), nil
}

func (r *familyRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Family, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	family, ok := r.store.families[id]
	if !ok {
		return domain.Family{}, fmt.Errorf("failed to get family: %w", domain.ErrNotFound)
	}
	return copyFamily(family), nil
}

func (r *familyRepository) List(ctx context.Context) ([]domain.Family, error) {
	return r.filter(func(domain.Family) bool { return true }), nil
}

func (r *familyRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.Family, error) {
	return r.filter(func(family domain.Family) bool {
		return family.Category != nil && *family.Category == categoryID
	}), nil
}

func (r *familyRepository) Update(ctx context.Context, family domain.Family) (domain.Family, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.families[family.ID]
	if !ok {
		return domain.Family{}, fmt.Errorf("failed to update family: %w", domain.ErrNotFound)
	}
	family.CreatedAt = existing.CreatedAt
	family.UpdatedAt = r.store.tick()
	family.Category = copyID(family.Category)
	r.store.families[family.ID] = family
	return copyFamily(family), nil
}

func (r *familyRepository) SetCategory(ctx context.Context, familyID uuid.UUID, categoryID *uuid.UUID) (domain.Family, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	family, ok := r.store.families[familyID]
	if !ok {
		return domain.Family{}, fmt.Errorf("failed to set family category: %w", domain.ErrNotFound)
	}
	family.Category = copyID(categoryID)
	family.UpdatedAt = r.store.tick()
	r.store.families[familyID] = family
	return copyFamily(family), nil
}

func (r *familyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.families[id]; !ok {
		return fmt.Errorf("failed to delete family: %w", domain.ErrNotFound)
	}
	delete(r.store.families, id)
	return nil
}

func (r *familyRepository) filter(match func(domain.Family) bool) []domain.Family {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []domain.Family{}
	for _, family := range r.store.families {
		if match(family) {
			out = append(out, copyFamily(family))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func copyFamily(family domain.Family) domain.Family {
	out := family
	out.Category = copyID(family.Category)
	return out
}
