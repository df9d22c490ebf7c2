package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, role_id, permission_version`

type userRepository struct {
	db db.DBTX
}

// NewUserRepository creates a user repository backed by Postgres
func NewUserRepository(exec db.DBTX) UserRepository {
	return &userRepository{db: exec}
}

func (r *userRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, name, role_id, permission_version) VALUES ($1, $2, $3, $4) RETURNING `+userColumns,
		user.ID, user.Name, user.Role, user.PermissionVersion,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) AssignRole(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET role_id = $2 WHERE id = $1 RETURNING `+userColumns,
		userID, roleID,
	)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to assign role: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetPermissionVersion(ctx context.Context, userID uuid.UUID) (int64, error) {
	var version int64
	if err := r.db.QueryRow(ctx, `SELECT permission_version FROM users WHERE id = $1`, userID).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get permission version: %w", translateNoRows(err))
	}
	return version, nil
}

// IncrementPermissionVersions uses a single UPDATE so concurrent bumps commute.
func (r *userRepository) IncrementPermissionVersions(ctx context.Context, userIDs []uuid.UUID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET permission_version = permission_version + 1 WHERE id = ANY($1::uuid[])`,
		userIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment permission versions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *userRepository) IncrementPermissionVersionsByRoles(ctx context.Context, roleIDs []uuid.UUID) (int64, error) {
	if len(roleIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET permission_version = permission_version + 1 WHERE role_id = ANY($1::uuid[])`,
		roleIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment permission versions by role: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *userRepository) IncrementAllPermissionVersions(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE users SET permission_version = permission_version + 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to increment all permission versions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	if err := row.Scan(&user.ID, &user.Name, &user.Role, &user.PermissionVersion); err != nil {
		return domain.User{}, translateNoRows(err)
	}
	return user, nil
}
