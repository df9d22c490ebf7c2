package domain

import (
	"time"

	"github.com/google/uuid"
)

// LinkViolationKind classifies a broken Category↔Family link.
type LinkViolationKind string

const (
	// ViolationDanglingFamily: a category references a family that does not exist.
	ViolationDanglingFamily LinkViolationKind = "dangling_family"
	// ViolationDanglingCategory: a family references a category that does not exist.
	ViolationDanglingCategory LinkViolationKind = "dangling_category"
	// ViolationMissingBackReference: one side points at the other, which points nowhere.
	ViolationMissingBackReference LinkViolationKind = "missing_back_reference"
	// ViolationMismatchedBackReference: one side points at the other, which points elsewhere.
	ViolationMismatchedBackReference LinkViolationKind = "mismatched_back_reference"
)

// LinkSide names the document whose reference was inspected.
type LinkSide string

const (
	SideCategory LinkSide = "category"
	SideFamily   LinkSide = "family"
)

// LinkViolation describes one pair breaking the bidirectional reference invariant.
type LinkViolation struct {
	Kind       LinkViolationKind `json:"kind"`
	Side       LinkSide          `json:"side"`
	CategoryID *uuid.UUID        `json:"categoryId,omitempty"`
	FamilyID   *uuid.UUID        `json:"familyId,omitempty"`
	Detail     string            `json:"detail"`
}

// ConsistencyReport is the outcome of one scan over both collections.
type ConsistencyReport struct {
	CheckedAt         time.Time       `json:"checkedAt"`
	CategoriesScanned int             `json:"categoriesScanned"`
	FamiliesScanned   int             `json:"familiesScanned"`
	Violations        []LinkViolation `json:"violations"`
	RepairsAttempted  int             `json:"repairsAttempted"`
	RepairsSucceeded  int             `json:"repairsSucceeded"`
}

// Consistent reports whether the scan found no violations.
func (r ConsistencyReport) Consistent() bool {
	return len(r.Violations) == 0
}
