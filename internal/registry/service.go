// Package registry maintains the denormalized index of display names for every
// audited entity. It is auxiliary: lookups never fail their caller.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/metrics"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

// Service is the Entity Registry.
type Service struct {
	repo   repository.EntityRegistryRepository
	logger *slog.Logger
}

// NewService creates a registry service. A nil logger falls back to slog.Default().
func NewService(repo repository.EntityRegistryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger.With("component", "registry")}
}

// UpsertEntity creates or refreshes the record and marks it active.
func (s *Service) UpsertEntity(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, name string, code *string) (domain.EntityRecord, error) {
	if !entityType.Valid() {
		return domain.EntityRecord{}, fmt.Errorf("failed to upsert entity: %w: %q", domain.ErrInvalidEntityType, entityType)
	}
	record, err := s.repo.Upsert(ctx, domain.EntityUpsert{
		EntityID:   entityID,
		EntityType: entityType,
		EntityName: name,
		EntityCode: code,
	})
	metrics.RegistryOperationsTotal.WithLabelValues("upsert", metrics.Outcome(err)).Inc()
	if err != nil {
		return domain.EntityRecord{}, fmt.Errorf("failed to upsert entity %s: %w", domain.EntityKey(entityID, entityType), err)
	}
	return record, nil
}

// DeactivateEntity soft-deletes the record so history can still resolve its name.
func (s *Service) DeactivateEntity(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) error {
	err := s.repo.SetActive(ctx, entityID, entityType, false)
	metrics.RegistryOperationsTotal.WithLabelValues("deactivate", metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to deactivate entity %s: %w", domain.EntityKey(entityID, entityType), err)
	}
	return nil
}

// LookupEntityName returns the stored name, reporting whether a record exists.
func (s *Service) LookupEntityName(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) (string, bool, error) {
	record, err := s.repo.Get(ctx, entityID, entityType)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record.EntityName, true, nil
}

// GetEntityName returns the stored name or a deterministic fallback.
func (s *Service) GetEntityName(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) string {
	name, found, err := s.LookupEntityName(ctx, entityID, entityType)
	if err != nil {
		s.logger.Warn("entity name lookup failed",
			"entity_id", entityID, "entity_type", entityType, "error", err)
	}
	if found && name != "" {
		return name
	}
	metrics.RegistryFallbackNamesTotal.Inc()
	return domain.FallbackEntityName(entityID, entityType)
}

// GetEntityNames resolves many names in one query, keyed by "<type>:<id>".
// Every requested ref is present in the result; unknown refs get the fallback name.
func (s *Service) GetEntityNames(ctx context.Context, refs []domain.EntityRef) map[string]string {
	names := make(map[string]string, len(refs))
	if len(refs) == 0 {
		return names
	}

	records, err := s.repo.GetMany(ctx, refs)
	if err != nil {
		s.logger.Warn("batched entity name lookup failed", "count", len(refs), "error", err)
	}
	for _, record := range records {
		if record.EntityName != "" {
			names[record.Ref().Key()] = record.EntityName
		}
	}
	for _, ref := range refs {
		if _, ok := names[ref.Key()]; !ok {
			metrics.RegistryFallbackNamesTotal.Inc()
			names[ref.Key()] = domain.FallbackEntityName(ref.EntityID, ref.EntityType)
		}
	}
	return names
}

// GetEntitiesByType lists the directory for one type, sorted by name.
func (s *Service) GetEntitiesByType(ctx context.Context, entityType domain.EntityType, isActive bool) ([]domain.EntityRecord, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("failed to list entities: %w: %q", domain.ErrInvalidEntityType, entityType)
	}
	records, err := s.repo.ListByType(ctx, entityType, isActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entities: %w", entityType, err)
	}
	return records, nil
}

// DeleteEntity hard-deletes the record. Maintenance only.
func (s *Service) DeleteEntity(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) error {
	err := s.repo.Delete(ctx, entityID, entityType)
	metrics.RegistryOperationsTotal.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to delete entity %s: %w", domain.EntityKey(entityID, entityType), err)
	}
	return nil
}
