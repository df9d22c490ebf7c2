// Package permission bumps per-user permission generation stamps so that
// credentials issued against an older stamp are recognised as stale.
package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpattn/catalogaudit/internal/metrics"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

// Invalidator increments permission versions. Every increment is one atomic
// statement, so concurrent invalidations commute.
type Invalidator struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	logger *slog.Logger
}

// NewInvalidator creates an invalidator. A nil logger falls back to slog.Default().
func NewInvalidator(users repository.UserRepository, roles repository.RoleRepository, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{users: users, roles: roles, logger: logger.With("component", "permission")}
}

// InvalidateUserPermissions increments one user's version.
func (i *Invalidator) InvalidateUserPermissions(ctx context.Context, userID uuid.UUID) error {
	affected, err := i.users.IncrementPermissionVersions(ctx, []uuid.UUID{userID})
	if err != nil {
		return fmt.Errorf("failed to invalidate permissions for user %s: %w", userID, err)
	}
	i.observe("user", affected)
	return nil
}

// InvalidateRolePermissions increments every user currently holding the role.
func (i *Invalidator) InvalidateRolePermissions(ctx context.Context, roleID uuid.UUID) (int64, error) {
	affected, err := i.users.IncrementPermissionVersionsByRoles(ctx, []uuid.UUID{roleID})
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate permissions for role %s: %w", roleID, err)
	}
	i.observe("role", affected)
	return affected, nil
}

// InvalidateMultipleUsersPermissions increments each listed user once.
func (i *Invalidator) InvalidateMultipleUsersPermissions(ctx context.Context, userIDs []uuid.UUID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	affected, err := i.users.IncrementPermissionVersions(ctx, uniqueIDs(userIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate permissions for %d users: %w", len(userIDs), err)
	}
	i.observe("users", affected)
	return affected, nil
}

// InvalidateAllPermissions increments every user.
func (i *Invalidator) InvalidateAllPermissions(ctx context.Context) (int64, error) {
	affected, err := i.users.IncrementAllPermissionVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate all permissions: %w", err)
	}
	i.observe("all", affected)
	i.logger.Info("invalidated all permission versions", "users", affected)
	return affected, nil
}

// InvalidatePermissionGroupPermissions increments every user whose role
// includes the permission group.
func (i *Invalidator) InvalidatePermissionGroupPermissions(ctx context.Context, permissionGroupID uuid.UUID) (int64, error) {
	roles, err := i.roles.ListByPermissionGroup(ctx, permissionGroupID)
	if err != nil {
		return 0, fmt.Errorf("failed to list roles for permission group %s: %w", permissionGroupID, err)
	}
	if len(roles) == 0 {
		return 0, nil
	}
	roleIDs := make([]uuid.UUID, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}
	affected, err := i.users.IncrementPermissionVersionsByRoles(ctx, roleIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate permissions for permission group %s: %w", permissionGroupID, err)
	}
	i.observe("permission_group", affected)
	return affected, nil
}

// IsPermissionVersionValid reports whether a credential's version is current.
func (i *Invalidator) IsPermissionVersionValid(ctx context.Context, userID uuid.UUID, tokenVersion int64) (bool, error) {
	current, err := i.users.GetPermissionVersion(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check permission version for user %s: %w", userID, err)
	}
	return current == tokenVersion, nil
}

func (i *Invalidator) observe(scope string, affected int64) {
	metrics.PermissionInvalidationsTotal.WithLabelValues(scope).Add(float64(affected))
	i.logger.Debug("permission versions incremented", "scope", scope, "users", affected)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
