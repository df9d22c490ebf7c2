package history

import (
	"context"
	"fmt"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
)

// RelationshipEndpoint is one side of a symmetric relationship event.
type RelationshipEndpoint struct {
	EntityID   uuid.UUID
	EntityType domain.EntityType
	EntityName string
}

// RelationshipChange describes a link added or removed between two entities.
type RelationshipChange struct {
	Source           RelationshipEndpoint
	Target           RelationshipEndpoint
	RelationshipType string
	Action           domain.Action
	UserID           uuid.UUID
	Comment          *string
	// RelationshipID optionally identifies the relationship document itself.
	RelationshipID *uuid.UUID
}

// RecordRelationshipChange writes one record per endpoint so the event shows up
// in either entity's history. Both records are attempted; the first error is returned.
func (l *Ledger) RecordRelationshipChange(ctx context.Context, change RelationshipChange) ([]domain.HistoryRecord, error) {
	if !change.Action.IsRelationship() {
		return nil, fmt.Errorf("failed to record relationship change: %w: %q", domain.ErrInvalidAction, change.Action)
	}

	sides := [][2]RelationshipEndpoint{
		{change.Source, change.Target},
		{change.Target, change.Source},
	}
	records := make([]domain.HistoryRecord, 0, len(sides))
	var firstErr error
	for _, side := range sides {
		primary, other := side[0], side[1]
		info := map[string]any{
			"relationshipType":  change.RelationshipType,
			"action":            string(change.Action),
			"relatedEntityId":   other.EntityID.String(),
			"relatedEntityType": string(other.EntityType),
		}
		if change.RelationshipID != nil {
			info["relationshipId"] = change.RelationshipID.String()
		}
		record, err := l.RecordHistory(ctx, RecordParams{
			EntityID:       primary.EntityID,
			EntityType:     primary.EntityType,
			EntityName:     primary.EntityName,
			Action:         change.Action,
			UserID:         change.UserID,
			Changes:        domain.Changes{},
			Comment:        change.Comment,
			AdditionalInfo: info,
			AffectedEntities: []AffectedEntityInput{{
				EntityID:   other.EntityID,
				EntityType: other.EntityType,
				EntityName: other.EntityName,
				Role:       domain.RoleSecondary,
			}},
		})
		if err != nil {
			l.logger.Warn("relationship history write failed",
				"entity_id", primary.EntityID, "entity_type", primary.EntityType, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		records = append(records, record)
	}
	return records, firstErr
}
