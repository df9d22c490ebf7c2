package memory

import (
	"context"
	"sort"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

type historyRepository struct {
	store *Store
}

var _ repository.HistoryRepository = (*historyRepository)(nil)

// NewHistoryRepository returns a history repository over the store.
func NewHistoryRepository(store *Store) repository.HistoryRepository {
	return &historyRepository{store: store}
}

func (r *historyRepository) Insert(ctx context.Context, record domain.HistoryRecord) (domain.HistoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := cloneHistoryRecord(record)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.store.tick()
	}
	if stored.Changes == nil {
		stored.Changes = domain.Changes{}
	}
	if stored.PreviousData == nil {
		stored.PreviousData = domain.Snapshot{}
	}
	if stored.NewData == nil {
		stored.NewData = domain.Snapshot{}
	}
	r.store.history = append(r.store.history, stored)
	return cloneHistoryRecord(stored), nil
}

func (r *historyRepository) List(ctx context.Context, filter domain.HistoryFilter, page domain.Pagination) (domain.HistoryPage, error) {
	return r.page(func(record domain.HistoryRecord) bool {
		return filter.Matches(record)
	}, page), nil
}

func (r *historyRepository) ListForEntity(ctx context.Context, entityID uuid.UUID, entityType *domain.EntityType, page domain.Pagination) (domain.HistoryPage, error) {
	return r.page(func(record domain.HistoryRecord) bool {
		return matchesEntity(record, entityID, entityType)
	}, page), nil
}

func (r *historyRepository) DeleteForEntity(ctx context.Context, entityID uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.history[:0]
	var removed int64
	for _, record := range r.store.history {
		if matchesEntity(record, entityID, nil) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	r.store.history = kept
	return removed, nil
}

func (r *historyRepository) page(match func(domain.HistoryRecord) bool, page domain.Pagination) domain.HistoryPage {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched := []domain.HistoryRecord{}
	for _, record := range r.store.history {
		if match(record) {
			matched = append(matched, record)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	start := page.Skip
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	records := make([]domain.HistoryRecord, 0, end-start)
	for _, record := range matched[start:end] {
		records = append(records, cloneHistoryRecord(record))
	}
	return domain.HistoryPage{Records: records, Total: len(matched)}
}

func matchesEntity(record domain.HistoryRecord, entityID uuid.UUID, entityType *domain.EntityType) bool {
	if record.EntityID == entityID && (entityType == nil || record.EntityType == *entityType) {
		return true
	}
	for _, affected := range record.AffectedEntities {
		if affected.EntityID == entityID && (entityType == nil || affected.EntityType == *entityType) {
			return true
		}
	}
	return false
}

func cloneHistoryRecord(record domain.HistoryRecord) domain.HistoryRecord {
	out := record
	out.AffectedEntities = append([]domain.AffectedEntity(nil), record.AffectedEntities...)
	if record.Changes != nil {
		out.Changes = make(domain.Changes, len(record.Changes))
		for key, value := range record.Changes {
			out.Changes[key] = value
		}
	}
	out.PreviousData = domain.CloneSnapshot(record.PreviousData)
	out.NewData = domain.CloneSnapshot(record.NewData)
	if record.AdditionalInfo != nil {
		out.AdditionalInfo = make(map[string]any, len(record.AdditionalInfo))
		for key, value := range record.AdditionalInfo {
			out.AdditionalInfo[key] = value
		}
	}
	if record.Comment != nil {
		comment := *record.Comment
		out.Comment = &comment
	}
	return out
}
