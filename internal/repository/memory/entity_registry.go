package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpattn/catalogaudit/internal/domain"
	"github.com/rpattn/catalogaudit/internal/repository"

	"github.com/google/uuid"
)

type entityRegistryRepository struct {
	store *Store
}

var _ repository.EntityRegistryRepository = (*entityRegistryRepository)(nil)

// NewEntityRegistryRepository returns a registry repository over the store.
func NewEntityRegistryRepository(store *Store) repository.EntityRegistryRepository {
	return &entityRegistryRepository{store: store}
}

func (r *entityRegistryRepository) Upsert(ctx context.Context, entity domain.EntityUpsert) (domain.EntityRecord, error) {
	entity = domain.NormalizeEntityUpsert(entity)
	key := domain.EntityKey(entity.EntityID, entity.EntityType)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.tick()
	record, ok := r.store.entities[key]
	if !ok {
		record = domain.EntityRecord{
			EntityID:   entity.EntityID,
			EntityType: entity.EntityType,
			CreatedAt:  now,
		}
	}
	record.EntityName = entity.EntityName
	if entity.EntityCode != nil {
		record.EntityCode = entity.EntityCode
	}
	record.IsActive = true
	record.UpdatedAt = now
	r.store.entities[key] = record
	return copyEntityRecord(record), nil
}

func (r *entityRegistryRepository) SetActive(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, active bool) error {
	key := domain.EntityKey(entityID, entityType)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.entities[key]
	if !ok {
		return nil
	}
	record.IsActive = active
	record.UpdatedAt = r.store.tick()
	r.store.entities[key] = record
	return nil
}

func (r *entityRegistryRepository) Get(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) (domain.EntityRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	record, ok := r.store.entities[domain.EntityKey(entityID, entityType)]
	if !ok {
		return domain.EntityRecord{}, fmt.Errorf("failed to get entity record: %w", domain.ErrNotFound)
	}
	return copyEntityRecord(record), nil
}

func (r *entityRegistryRepository) GetMany(ctx context.Context, refs []domain.EntityRef) ([]domain.EntityRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := make([]domain.EntityRecord, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		key := ref.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if record, ok := r.store.entities[key]; ok {
			records = append(records, copyEntityRecord(record))
		}
	}
	return records, nil
}

func (r *entityRegistryRepository) ListByType(ctx context.Context, entityType domain.EntityType, isActive bool) ([]domain.EntityRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := []domain.EntityRecord{}
	for _, record := range r.store.entities {
		if record.EntityType == entityType && record.IsActive == isActive {
			records = append(records, copyEntityRecord(record))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].EntityName != records[j].EntityName {
			return records[i].EntityName < records[j].EntityName
		}
		return records[i].EntityID.String() < records[j].EntityID.String()
	})
	return records, nil
}

func (r *entityRegistryRepository) Delete(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.entities, domain.EntityKey(entityID, entityType))
	return nil
}

func copyEntityRecord(record domain.EntityRecord) domain.EntityRecord {
	out := record
	if record.EntityCode != nil {
		code := *record.EntityCode
		out.EntityCode = &code
	}
	return out
}
