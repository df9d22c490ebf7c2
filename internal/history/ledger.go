// Package history implements the append-only audit ledger.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/metrics"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

// NameRegistry is the part of the entity registry the ledger depends on.
type NameRegistry interface {
	UpsertEntity(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, name string, code *string) (domain.EntityRecord, error)
	LookupEntityName(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) (string, bool, error)
}

// AffectedEntityInput is a secondary entity supplied with a record.
type AffectedEntityInput struct {
	EntityID   uuid.UUID
	EntityType domain.EntityType
	// EntityName is resolved through the registry when empty.
	EntityName string
	// Role defaults to secondary. A primary role here is downgraded.
	Role domain.EntityRole
}

// RecordParams describes one history entry to persist.
type RecordParams struct {
	EntityID   uuid.UUID
	EntityType domain.EntityType
	EntityName string
	EntityCode *string
	Action     domain.Action
	UserID     uuid.UUID

	PreviousData domain.Snapshot
	NewData      domain.Snapshot
	// Changes is computed from the snapshots when nil.
	Changes domain.Changes

	Comment          *string
	AdditionalInfo   map[string]any
	AffectedEntities []AffectedEntityInput
}

// Ledger records and queries history.
type Ledger struct {
	repo     repository.HistoryRepository
	registry NameRegistry
	logger   *slog.Logger

	defaultPageSize int
	maxPageSize     int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPageSizes overrides the default and maximum page sizes of listings.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(l *Ledger) {
		if defaultSize > 0 {
			l.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			l.maxPageSize = maxSize
		}
	}
}

// NewLedger creates a ledger. A nil logger falls back to slog.Default().
func NewLedger(repo repository.HistoryRepository, registry NameRegistry, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		repo:            repo,
		registry:        registry,
		logger:          logger.With("component", "history"),
		defaultPageSize: 50,
		maxPageSize:     500,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordHistory persists one immutable history record. Name resolution and
// registry upserts are best-effort; only the insert itself can fail the call.
func (l *Ledger) RecordHistory(ctx context.Context, params RecordParams) (domain.HistoryRecord, error) {
	if !params.EntityType.Valid() {
		return domain.HistoryRecord{}, fmt.Errorf("failed to record history: %w: %q", domain.ErrInvalidEntityType, params.EntityType)
	}
	if _, err := domain.ParseAction(string(params.Action)); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to record history: %w", err)
	}

	primaryName := l.resolvePrimaryName(ctx, params)
	code := params.EntityCode
	if code == nil {
		code = domain.CodeFromSnapshots(params.NewData, params.PreviousData)
	}
	l.upsertBestEffort(ctx, params.EntityID, params.EntityType, primaryName, code)

	affected := []domain.AffectedEntity{{
		EntityID:   params.EntityID,
		EntityType: params.EntityType,
		EntityName: primaryName,
		Role:       domain.RolePrimary,
	}}
	for _, input := range params.AffectedEntities {
		if input.EntityID == params.EntityID && input.EntityType == params.EntityType {
			continue
		}
		if !input.EntityType.Valid() {
			l.logger.Warn("skipping affected entity with invalid type",
				"entity_id", input.EntityID, "entity_type", input.EntityType)
			continue
		}
		name := strings.TrimSpace(input.EntityName)
		if name == "" {
			name = l.lookupName(ctx, input.EntityID, input.EntityType)
		}
		l.upsertBestEffort(ctx, input.EntityID, input.EntityType, name, nil)
		affected = append(affected, domain.AffectedEntity{
			EntityID:   input.EntityID,
			EntityType: input.EntityType,
			EntityName: name,
			Role:       domain.RoleSecondary,
		})
	}

	previous := domain.CloneSnapshot(params.PreviousData)
	if params.Action == domain.ActionCreate {
		previous = domain.Snapshot{}
	}
	changes := params.Changes
	if changes == nil {
		var base domain.Snapshot
		if params.Action != domain.ActionCreate {
			base = params.PreviousData
		}
		changes = domain.CalculateChanges(base, params.NewData)
	}

	record := domain.HistoryRecord{
		EntityID:         params.EntityID,
		EntityType:       params.EntityType,
		AffectedEntities: affected,
		Action:           params.Action,
		Changes:          changes,
		PreviousData:     previous,
		NewData:          domain.CloneSnapshot(params.NewData),
		AdditionalInfo:   params.AdditionalInfo,
		Comment:          params.Comment,
		CreatedBy:        params.UserID,
	}
	if record.PreviousData == nil {
		record.PreviousData = domain.Snapshot{}
	}
	if record.NewData == nil {
		record.NewData = domain.Snapshot{}
	}

	stored, err := l.repo.Insert(ctx, record)
	if err != nil {
		metrics.HistoryWriteFailuresTotal.Inc()
		return domain.HistoryRecord{}, fmt.Errorf("failed to insert history record for %s: %w",
			domain.EntityKey(params.EntityID, params.EntityType), err)
	}
	metrics.HistoryRecordsTotal.WithLabelValues(string(stored.Action)).Inc()
	return stored, nil
}

// GetAllHistory lists records newest first.
func (l *Ledger) GetAllHistory(ctx context.Context, filter domain.HistoryFilter, page domain.Pagination) (domain.HistoryPage, error) {
	start := time.Now()
	result, err := l.repo.List(ctx, filter, l.normalizePage(page))
	metrics.HistoryQueryDuration.WithLabelValues("all").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("failed to list history: %w", err)
	}
	return result, nil
}

// GetEntityHistory lists records where the entity is primary or any affected entity.
func (l *Ledger) GetEntityHistory(ctx context.Context, entityID uuid.UUID, entityType *domain.EntityType, page domain.Pagination) (domain.HistoryPage, error) {
	start := time.Now()
	result, err := l.repo.ListForEntity(ctx, entityID, entityType, l.normalizePage(page))
	metrics.HistoryQueryDuration.WithLabelValues("entity").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("failed to list history for entity %s: %w", entityID, err)
	}
	return result, nil
}

// DeleteEntityHistory purges every record referencing the entity and returns the count.
func (l *Ledger) DeleteEntityHistory(ctx context.Context, entityID uuid.UUID) (int64, error) {
	removed, err := l.repo.DeleteForEntity(ctx, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete history for entity %s: %w", entityID, err)
	}
	metrics.HistoryPurgedTotal.Add(float64(removed))
	l.logger.Info("purged entity history", "entity_id", entityID, "removed", removed)
	return removed, nil
}

// PageToPagination applies the ledger's page size limits to page/limit parameters.
func (l *Ledger) PageToPagination(page, limit int) domain.Pagination {
	return domain.PageToPagination(page, limit, l.defaultPageSize, l.maxPageSize)
}

func (l *Ledger) normalizePage(page domain.Pagination) domain.Pagination {
	if page.Limit <= 0 {
		page.Limit = l.defaultPageSize
	}
	if page.Limit > l.maxPageSize {
		page.Limit = l.maxPageSize
	}
	if page.Skip < 0 {
		page.Skip = 0
	}
	return page
}

func (l *Ledger) resolvePrimaryName(ctx context.Context, params RecordParams) string {
	// Trimmed the same way the registry stores it; blank falls through.
	if name := strings.TrimSpace(params.EntityName); name != "" {
		return name
	}
	if name, ok := domain.NameFromSnapshots(params.NewData, params.PreviousData); ok {
		return name
	}
	return l.lookupName(ctx, params.EntityID, params.EntityType)
}

func (l *Ledger) lookupName(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) string {
	if l.registry != nil {
		name, found, err := l.registry.LookupEntityName(ctx, entityID, entityType)
		if err != nil {
			l.logger.Warn("registry name lookup failed",
				"entity_id", entityID, "entity_type", entityType, "error", err)
		}
		if found && name != "" {
			return name
		}
	}
	return domain.FallbackEntityName(entityID, entityType)
}

func (l *Ledger) upsertBestEffort(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, name string, code *string) {
	if l.registry == nil {
		return
	}
	if _, err := l.registry.UpsertEntity(ctx, entityID, entityType, name, code); err != nil {
		l.logger.Warn("registry upsert failed",
			"entity_id", entityID, "entity_type", entityType, "error", err)
	}
}
