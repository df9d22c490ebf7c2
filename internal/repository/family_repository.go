package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const familyColumns = `id, name, code, description, category_id, is_active, created_at, updated_at`

// familyRepository implements FamilyRepository interface
type familyRepository struct {
	db db.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(exec db.DBTX) FamilyRepository {
	return &familyRepository{db: exec}
}

// Create creates a new family
func (r *familyRepository) Create(ctx context.Context, family domain.Family) (domain.Family, error) {
	if family.ID == uuid.Nil {
		family.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO families (id, name, code, description, category_id, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+familyColumns,
		family.ID, family.Name, family.Code, family.Description, family.Category, family.IsActive,
	)
	created, err := scanFamily(row)
	if err != nil {
		return domain.Family{}, fmt.Errorf("failed to create family: %w", err)
	}
	return created, nil
}

// GetByID retrieves a family by ID
func (r *familyRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Family, error) {
	row := r.db.QueryRow(ctx, `SELECT `+familyColumns+` FROM families WHERE id = $1`, id)
	family, err := scanFamily(row)
	if err != nil {
		return domain.Family{}, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}

// List retrieves all families
func (r *familyRepository) List(ctx context.Context) ([]domain.Family, error) {
	rows, err := r.db.Query(ctx, `SELECT `+familyColumns+` FROM families ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	return collectFamilies(rows)
}

// ListByCategory retrieves families referencing a category
func (r *familyRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.Family, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+familyColumns+` FROM families WHERE category_id = $1 ORDER BY created_at ASC, id ASC`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list families by category: %w", err)
	}
	return collectFamilies(rows)
}

// Update updates a family
func (r *familyRepository) Update(ctx context.Context, family domain.Family) (domain.Family, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE families
		 SET name = $2, code = $3, description = $4, category_id = $5, is_active = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+familyColumns,
		family.ID, family.Name, family.Code, family.Description, family.Category, family.IsActive,
	)
	updated, err := scanFamily(row)
	if err != nil {
		return domain.Family{}, fmt.Errorf("failed to update family: %w", err)
	}
	return updated, nil
}

// SetCategory rewrites the category reference of a family
func (r *familyRepository) SetCategory(ctx context.Context, familyID uuid.UUID, categoryID *uuid.UUID) (domain.Family, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE families SET category_id = $2, updated_at = NOW() WHERE id = $1 RETURNING `+familyColumns,
		familyID, categoryID,
	)
	updated, err := scanFamily(row)
	if err != nil {
		return domain.Family{}, fmt.Errorf("failed to set family category: %w", err)
	}
	return updated, nil
}

// Delete deletes a family
func (r *familyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM families WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete family: %w", domain.ErrNotFound)
	}
	return nil
}

func collectFamilies(rows pgx.Rows) ([]domain.Family, error) {
	defer rows.Close()

	families := []domain.Family{}
	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, family)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate families: %w", err)
	}
	return families, nil
}

func scanFamily(row pgx.Row) (domain.Family, error) {
	var family domain.Family
	if err := row.Scan(
		&family.ID,
		&family.Name,
		&family.Code,
		&family.Description,
		&family.Category,
		&family.IsActive,
		&family.CreatedAt,
		&family.UpdatedAt,
	); err != nil {
		return domain.Family{}, translateNoRows(err)
	}
	return family, nil
}
