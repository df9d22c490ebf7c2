package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

type userRepository struct {
	store *Store
}

var _ repository.UserRepository = (*userRepository)(nil)

// NewUserRepository returns a user repository over the store.
func NewUserRepository(store *Store) repository.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, exists := r.store.users[user.ID]; exists {
		return domain.User{}, fmt.Errorf("failed to create user: id %s already exists", user.ID)
	}
	user.Role = copyID(user.Role)
	r.store.users[user.ID] = user
	return copyUser(user), nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("failed to get user: %w", domain.ErrNotFound)
	}
	return copyUser(user), nil
}

func (r *userRepository) AssignRole(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[userID]
	if !ok {
		return domain.User{}, fmt.Errorf("failed to assign role: %w", domain.ErrNotFound)
	}
	user.Role = copyID(roleID)
	r.store.users[userID] = user
	return copyUser(user), nil
}

func (r *userRepository) GetPermissionVersion(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[userID]
	if !ok {
		return 0, fmt.Errorf("failed to get permission version: %w", domain.ErrNotFound)
	}
	return user.PermissionVersion, nil
}

func (r *userRepository) IncrementPermissionVersions(ctx context.Context, userIDs []uuid.UUID) (int64, error) {
	wanted := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}
	return r.increment(func(user domain.User) bool {
		_, ok := wanted[user.ID]
		return ok
	}), nil
}

func (r *userRepository) IncrementPermissionVersionsByRoles(ctx context.Context, roleIDs []uuid.UUID) (int64, error) {
	wanted := make(map[uuid.UUID]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		wanted[id] = struct{}{}
	}
	return r.increment(func(user domain.User) bool {
		if user.Role == nil {
			return false
		}
		_, ok := wanted[*user.Role]
		return ok
	}), nil
}

func (r *userRepository) IncrementAllPermissionVersions(ctx context.Context) (int64, error) {
	return r.increment(func(domain.User) bool { return true }), nil
}

func (r *userRepository) increment(match func(domain.User) bool) int64 {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var affected int64
	for id, user := range r.store.users {
		if !match(user) {
			continue
		}
		user.PermissionVersion++
		r.store.users[id] = user
		affected++
	}
	return affected
}

func copyUser(user domain.User) domain.User {
	out := user
	out.Role = copyID(user.Role)
	return out
}

type roleRepository struct {
	store *Store
}

var _ repository.RoleRepository = (*roleRepository)(nil)

// NewRoleRepository returns a role repository over the store.
func NewRoleRepository(store *Store) repository.RoleRepository {
	return &roleRepository{store: store}
}

func (r *roleRepository) Create(ctx context.Context, role domain.Role) (domain.Role, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	if _, exists := r.store.roles[role.ID]; exists {
		return domain.Role{}, fmt.Errorf("failed to create role: id %s already exists", role.ID)
	}
	role = copyRole(role)
	r.store.roles[role.ID] = role
	return copyRole(role), nil
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	role, ok := r.store.roles[id]
	if !ok {
		return domain.Role{}, fmt.Errorf("failed to get role: %w", domain.ErrNotFound)
	}
	return copyRole(role), nil
}

func (r *roleRepository) ListByPermissionGroup(ctx context.Context, permissionGroupID uuid.UUID) ([]domain.Role, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	roles := []domain.Role{}
	for _, role := range r.store.roles {
		for _, group := range role.PermissionGroups {
			if group == permissionGroupID {
				roles = append(roles, copyRole(role))
				break
			}
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func copyRole(role domain.Role) domain.Role {
	out := role
	out.PermissionGroups = append([]uuid.UUID{}, role.PermissionGroups...)
	return out
}
