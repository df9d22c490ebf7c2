package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType is the closed set of entity kinds tracked by the audit subsystem.
type EntityType string

const (
	EntityTypeAttribute        EntityType = "attribute"
	EntityTypeAttributeGroup   EntityType = "attributeGroup"
	EntityTypeCategory         EntityType = "category"
	EntityTypeFamily           EntityType = "family"
	EntityTypeItemType         EntityType = "itemType"
	EntityTypeItem             EntityType = "item"
	EntityTypeUser             EntityType = "user"
	EntityTypeRole             EntityType = "role"
	EntityTypePermission       EntityType = "permission"
	EntityTypePermissionGroup  EntityType = "permissionGroup"
	EntityTypeRelationship     EntityType = "relationship"
	EntityTypeRelationshipType EntityType = "relationshipType"
)

// UnknownEntityName is returned when neither a registry record nor an id is available.
const UnknownEntityName = "Unknown Entity"

var entityTypes = []EntityType{
	EntityTypeAttribute,
	EntityTypeAttributeGroup,
	EntityTypeCategory,
	EntityTypeFamily,
	EntityTypeItemType,
	EntityTypeItem,
	EntityTypeUser,
	EntityTypeRole,
	EntityTypePermission,
	EntityTypePermissionGroup,
	EntityTypeRelationship,
	EntityTypeRelationshipType,
}

// EntityTypes returns every supported entity type.
func EntityTypes() []EntityType {
	return append([]EntityType(nil), entityTypes...)
}

// Valid reports whether t is one of the supported entity types.
func (t EntityType) Valid() bool {
	for _, candidate := range entityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType validates raw input, matching case-insensitively.
func ParseEntityType(raw string) (EntityType, error) {
	trimmed := strings.TrimSpace(raw)
	for _, candidate := range entityTypes {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, raw)
}

// EntityRef identifies one entity by id and type.
type EntityRef struct {
	EntityID   uuid.UUID  `json:"entityId"`
	EntityType EntityType `json:"entityType"`
}

// Key is the "<entityType>:<entityId>" lookup key used for batched name resolution.
func (r EntityRef) Key() string {
	return EntityKey(r.EntityID, r.EntityType)
}

// EntityKey builds the batched lookup key for an entity.
func EntityKey(id uuid.UUID, entityType EntityType) string {
	return string(entityType) + ":" + id.String()
}

// ParseEntityKey reverses EntityKey.
func ParseEntityKey(key string) (EntityRef, error) {
	typePart, idPart, ok := strings.Cut(key, ":")
	if !ok {
		return EntityRef{}, fmt.Errorf("malformed entity key %q", key)
	}
	entityType, err := ParseEntityType(typePart)
	if err != nil {
		return EntityRef{}, err
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return EntityRef{}, fmt.Errorf("malformed entity key %q: %w", key, err)
	}
	return EntityRef{EntityID: id, EntityType: entityType}, nil
}

// FallbackEntityName synthesizes a display name for an entity that has no registry record.
func FallbackEntityName(id uuid.UUID, entityType EntityType) string {
	if id == uuid.Nil || entityType == "" {
		return UnknownEntityName
	}
	return fmt.Sprintf("%s_%s", entityType, id)
}

// EntityRecord is the denormalized directory row for one entity.
type EntityRecord struct {
	EntityID   uuid.UUID  `json:"entityId"`
	EntityType EntityType `json:"entityType"`
	EntityName string     `json:"entityName"`
	EntityCode *string    `json:"entityCode,omitempty"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Ref returns the identifying pair of the record.
func (r EntityRecord) Ref() EntityRef {
	return EntityRef{EntityID: r.EntityID, EntityType: r.EntityType}
}

// EntityUpsert carries the values written by a registry upsert.
type EntityUpsert struct {
	EntityID   uuid.UUID
	EntityType EntityType
	EntityName string
	EntityCode *string
}

// NormalizeEntityUpsert trims the display values and drops a blank code.
func NormalizeEntityUpsert(in EntityUpsert) EntityUpsert {
	out := in
	out.EntityName = strings.TrimSpace(in.EntityName)
	if in.EntityCode != nil {
		code := strings.TrimSpace(*in.EntityCode)
		if code == "" {
			out.EntityCode = nil
		} else {
			out.EntityCode = &code
		}
	}
	return out
}
