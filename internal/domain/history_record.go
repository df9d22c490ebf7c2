package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of change a history record describes.
type Action string

const (
	ActionCreate             Action = "create"
	ActionUpdate             Action = "update"
	ActionDelete             Action = "delete"
	ActionRestore            Action = "restore"
	ActionRelationshipAdd    Action = "relationship_add"
	ActionRelationshipRemove Action = "relationship_remove"
)

// ParseAction validates a raw action value.
func ParseAction(raw string) (Action, error) {
	switch action := Action(strings.ToLower(strings.TrimSpace(raw))); action {
	case ActionCreate, ActionUpdate, ActionDelete, ActionRestore, ActionRelationshipAdd, ActionRelationshipRemove:
		return action, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}

// IsRelationship reports whether the action is a relationship add/remove event.
func (a Action) IsRelationship() bool {
	return a == ActionRelationshipAdd || a == ActionRelationshipRemove
}

// EntityRole marks whether an affected entity caused the record or was touched by it.
type EntityRole string

const (
	RolePrimary   EntityRole = "primary"
	RoleSecondary EntityRole = "secondary"
)

// AffectedEntity is one entity referenced by a history record.
type AffectedEntity struct {
	EntityID   uuid.UUID  `json:"entityId"`
	EntityType EntityType `json:"entityType"`
	EntityName string     `json:"entityName"`
	Role       EntityRole `json:"role"`
}

// Ref returns the identifying pair of the affected entity.
func (a AffectedEntity) Ref() EntityRef {
	return EntityRef{EntityID: a.EntityID, EntityType: a.EntityType}
}

// Snapshot is a schema-less view of an entity document.
type Snapshot map[string]any

// HistoryRecord is one immutable audit trail entry.
type HistoryRecord struct {
	ID               uuid.UUID        `json:"id"`
	EntityID         uuid.UUID        `json:"entityId"`
	EntityType       EntityType       `json:"entityType"`
	AffectedEntities []AffectedEntity `json:"affectedEntities"`
	Action           Action           `json:"action"`
	Changes          Changes          `json:"changes"`
	PreviousData     Snapshot         `json:"previousData"`
	NewData          Snapshot         `json:"newData"`
	AdditionalInfo   map[string]any   `json:"additionalInfo,omitempty"`
	Comment          *string          `json:"comment,omitempty"`
	CreatedBy        uuid.UUID        `json:"createdBy"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Primary returns the primary affected entity entry.
func (r HistoryRecord) Primary() (AffectedEntity, bool) {
	for _, affected := range r.AffectedEntities {
		if affected.Role == RolePrimary {
			return affected, true
		}
	}
	return AffectedEntity{}, false
}

// References reports whether the entity appears as primary or in affectedEntities.
func (r HistoryRecord) References(entityID uuid.UUID) bool {
	if r.EntityID == entityID {
		return true
	}
	for _, affected := range r.AffectedEntities {
		if affected.EntityID == entityID {
			return true
		}
	}
	return false
}

// AffectedEntityIDs lists the ids of every affected entity in order.
func (r HistoryRecord) AffectedEntityIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.AffectedEntities))
	for _, affected := range r.AffectedEntities {
		ids = append(ids, affected.EntityID)
	}
	return ids
}

// HistoryFilter narrows history listings. Zero values disable a filter.
type HistoryFilter struct {
	EntityType *EntityType
	StartDate  *time.Time
	EndDate    *time.Time
	CreatedBy  *uuid.UUID
}

// Matches applies the filter to a record in memory.
func (f HistoryFilter) Matches(record HistoryRecord) bool {
	if f.EntityType != nil && record.EntityType != *f.EntityType {
		return false
	}
	if f.StartDate != nil && record.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && record.CreatedAt.After(*f.EndDate) {
		return false
	}
	if f.CreatedBy != nil && record.CreatedBy != *f.CreatedBy {
		return false
	}
	return true
}

// HistoryPage is a paginated slice of history records plus the unpaginated total.
type HistoryPage struct {
	Records []HistoryRecord `json:"records"`
	Total   int             `json:"total"`
}

// Pagination expresses a skip/limit window.
type Pagination struct {
	Limit int
	Skip  int
}

// PageToPagination converts 1-based page/limit query parameters into skip/limit.
func PageToPagination(page, limit, defaultLimit, maxLimit int) Pagination {
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if page < 1 {
		page = 1
	}
	// Skip saturates instead of overflowing.
	if limit > 0 && page-1 > math.MaxInt/limit {
		page = math.MaxInt/limit + 1
	}
	return Pagination{Limit: limit, Skip: (page - 1) * limit}
}
