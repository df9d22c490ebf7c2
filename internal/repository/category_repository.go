package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const categoryColumns = `id, name, code, description, family_id, is_active, created_at, updated_at`

// categoryRepository implements CategoryRepository interface
type categoryRepository struct {
	db db.DBTX
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(exec db.DBTX) CategoryRepository {
	return &categoryRepository{db: exec}
}

// Create creates a new category
func (r *categoryRepository) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO categories (id, name, code, description, family_id, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+categoryColumns,
		category.ID, category.Name, category.Code, category.Description, category.Family, category.IsActive,
	)
	created, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	return created, nil
}

// GetByID retrieves a category by ID
func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Category, error) {
	row := r.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	category, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// List retrieves all categories
func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return collectCategories(rows)
}

// ListByFamily retrieves categories referencing a family
func (r *categoryRepository) ListByFamily(ctx context.Context, familyID uuid.UUID) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE family_id = $1 ORDER BY created_at ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories by family: %w", err)
	}
	return collectCategories(rows)
}

// Update updates a category
func (r *categoryRepository) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE categories
		 SET name = $2, code = $3, description = $4, family_id = $5, is_active = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+categoryColumns,
		category.ID, category.Name, category.Code, category.Description, category.Family, category.IsActive,
	)
	updated, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to update category: %w", err)
	}
	return updated, nil
}

// SetFamily rewrites the family reference of a category
func (r *categoryRepository) SetFamily(ctx context.Context, categoryID uuid.UUID, familyID *uuid.UUID) (domain.Category, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE categories SET family_id = $2, updated_at = NOW() WHERE id = $1 RETURNING `+categoryColumns,
		categoryID, familyID,
	)
	updated, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to set category family: %w", err)
	}
	return updated, nil
}

// Delete deletes a category
func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete category: %w", domain.ErrNotFound)
	}
	return nil
}

func collectCategories(rows pgx.Rows) ([]domain.Category, error) {
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

func scanCategory(row pgx.Row) (domain.Category, error) {
	var category domain.Category
	if err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Code,
		&category.Description,
		&category.Family,
		&category.IsActive,
		&category.CreatedAt,
		&category.UpdatedAt,
	); err != nil {
		return domain.Category{}, translateNoRows(err)
	}
	return category, nil
}
