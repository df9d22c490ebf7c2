package repository

import (
	"context"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
)

// EntityRegistryRepository stores the denormalized entity name directory.
type EntityRegistryRepository interface {
	// Upsert creates or refreshes the record for (EntityID, EntityType) and marks it active.
	// A nil EntityCode leaves any stored code in place.
	Upsert(ctx context.Context, entity domain.EntityUpsert) (domain.EntityRecord, error)
	// SetActive is a no-op for an entity that was never registered.
	SetActive(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, active bool) error
	Get(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) (domain.EntityRecord, error)
	GetMany(ctx context.Context, refs []domain.EntityRef) ([]domain.EntityRecord, error)
	ListByType(ctx context.Context, entityType domain.EntityType, isActive bool) ([]domain.EntityRecord, error)
	Delete(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) error
}

// HistoryRepository stores immutable audit records.
type HistoryRepository interface {
	Insert(ctx context.Context, record domain.HistoryRecord) (domain.HistoryRecord, error)
	List(ctx context.Context, filter domain.HistoryFilter, page domain.Pagination) (domain.HistoryPage, error)
	// ListForEntity returns records where the entity is primary or any affected entity.
	ListForEntity(ctx context.Context, entityID uuid.UUID, entityType *domain.EntityType, page domain.Pagination) (domain.HistoryPage, error)
	// DeleteForEntity purges records where the entity is primary or any affected entity.
	DeleteForEntity(ctx context.Context, entityID uuid.UUID) (int64, error)
}

// CategoryRepository defines the category operations used by the audit core
type CategoryRepository interface {
	Create(ctx context.Context, category domain.Category) (domain.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	ListByFamily(ctx context.Context, familyID uuid.UUID) ([]domain.Category, error)
	Update(ctx context.Context, category domain.Category) (domain.Category, error)
	// SetFamily rewrites only the family reference; nil clears it.
	SetFamily(ctx context.Context, categoryID uuid.UUID, familyID *uuid.UUID) (domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FamilyRepository defines the family operations used by the audit core
type FamilyRepository interface {
	Create(ctx context.Context, family domain.Family) (domain.Family, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Family, error)
	List(ctx context.Context) ([]domain.Family, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]domain.Family, error)
	Update(ctx context.Context, family domain.Family) (domain.Family, error)
	// SetCategory rewrites only the category reference; nil clears it.
	SetCategory(ctx context.Context, familyID uuid.UUID, categoryID *uuid.UUID) (domain.Family, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository exposes the permission generation counters stored on users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	AssignRole(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) (domain.User, error)
	GetPermissionVersion(ctx context.Context, userID uuid.UUID) (int64, error)
	// IncrementPermissionVersions atomically bumps the counter of every listed user.
	IncrementPermissionVersions(ctx context.Context, userIDs []uuid.UUID) (int64, error)
	// IncrementPermissionVersionsByRoles bumps every user whose role is one of roleIDs.
	IncrementPermissionVersionsByRoles(ctx context.Context, roleIDs []uuid.UUID) (int64, error)
	IncrementAllPermissionVersions(ctx context.Context) (int64, error)
}

// RoleRepository resolves roles for permission invalidation.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) (domain.Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error)
	ListByPermissionGroup(ctx context.Context, permissionGroupID uuid.UUID) ([]domain.Role, error)
}
