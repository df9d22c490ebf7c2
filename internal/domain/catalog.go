package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category is the category document as far as the audit core needs it.
type Category struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	Family      *uuid.UUID `json:"family"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewCategory creates a new active category.
func NewCategory(name, code string) Category {
	now := time.Now()
	return Category{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithFamily returns a copy of the category pointing at familyID (nil clears it).
func (c Category) WithFamily(familyID *uuid.UUID) Category {
	out := c
	out.Family = copyID(familyID)
	out.UpdatedAt = time.Now()
	return out
}

// Family is the family document as far as the audit core needs it.
type Family struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	Category    *uuid.UUID `json:"category"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewFamily creates a new active family.
func NewFamily(name, code string) Family {
	now := time.Now()
	return Family{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithCategory returns a copy of the family pointing at categoryID (nil clears it).
func (f Family) WithCategory(categoryID *uuid.UUID) Family {
	out := f
	out.Category = copyID(categoryID)
	out.UpdatedAt = time.Now()
	return out
}

// User carries the permission generation stamp of one account.
type User struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Role              *uuid.UUID `json:"role"`
	PermissionVersion int64      `json:"permissionVersion"`
}

// Role groups permission groups assigned to users.
type Role struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	PermissionGroups []uuid.UUID `json:"permissionGroups"`
}

// SameID reports whether two optional references point at the same id.
func SameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
