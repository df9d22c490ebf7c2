package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type roleRepository struct {
	db db.DBTX
}

// NewRoleRepository creates a role repository backed by Postgres
func NewRoleRepository(exec db.DBTX) RoleRepository {
	return &roleRepository{db: exec}
}

func (r *roleRepository) Create(ctx context.Context, role domain.Role) (domain.Role, error) {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	groups := role.PermissionGroups
	if groups == nil {
		groups = []uuid.UUID{}
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO roles (id, name, permission_groups) VALUES ($1, $2, $3)
		 RETURNING id, name, permission_groups`,
		role.ID, role.Name, groups,
	)
	created, err := scanRole(row)
	if err != nil {
		return domain.Role{}, fmt.Errorf("failed to create role: %w", err)
	}
	return created, nil
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, permission_groups FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		return domain.Role{}, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (r *roleRepository) ListByPermissionGroup(ctx context.Context, permissionGroupID uuid.UUID) ([]domain.Role, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, permission_groups FROM roles WHERE permission_groups @> ARRAY[$1::uuid] ORDER BY name ASC`,
		permissionGroupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles by permission group: %w", err)
	}
	defer rows.Close()

	roles := []domain.Role{}
	for rows.Next() {
		role, scanErr := scanRole(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan role: %w", scanErr)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

func scanRole(row pgx.Row) (domain.Role, error) {
	var role domain.Role
	if err := row.Scan(&role.ID, &role.Name, &role.PermissionGroups); err != nil {
		return domain.Role{}, translateNoRows(err)
	}
	return role, nil
}
