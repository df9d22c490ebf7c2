package nameloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/graph-gophers/dataloader"
)

// NameSource resolves many entity names at once, keyed by "<type>:<id>".
type NameSource interface {
	GetEntityNames(ctx context.Context, refs []domain.EntityRef) map[string]string
}

// NameLoader batches entity name lookups made while rendering one response.
type NameLoader struct {
	Loader *dataloader.Loader
}

// NewNameLoader creates a loader that coalesces lookups within a short window.
func NewNameLoader(source NameSource) *NameLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		refs := make([]domain.EntityRef, 0, len(keys))
		parsed := make([]*domain.EntityRef, len(keys))
		for i, k := range keys {
			ref, err := domain.ParseEntityKey(k.String())
			if err != nil {
				continue
			}
			parsed[i] = &ref
			refs = append(refs, ref)
		}

		names := source.GetEntityNames(ctx, refs)

		// Results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			if parsed[i] == nil {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid entity key %q", k.String())}
				continue
			}
			results[i] = &dataloader.Result{Data: names[k.String()]}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
	return &NameLoader{Loader: loader}
}

// LoadNames resolves the given refs through the loader. Refs that fail keep no entry.
func (l *NameLoader) LoadNames(ctx context.Context, refs []domain.EntityRef) map[string]string {
	names := make(map[string]string, len(refs))
	if len(refs) == 0 {
		return names
	}
	keys := make(dataloader.Keys, len(refs))
	for i, ref := range refs {
		keys[i] = dataloader.StringKey(ref.Key())
	}
	results, _ := l.Loader.LoadMany(ctx, keys)()
	for i, result := range results {
		if name, ok := result.(string); ok && name != "" {
			names[refs[i].Key()] = name
		}
	}
	return names
}

// RefreshAffectedNames replaces stored affected-entity names with current
// registry names. Records are modified in place.
func (l *NameLoader) RefreshAffectedNames(ctx context.Context, records []domain.HistoryRecord) {
	seen := map[string]struct{}{}
	var refs []domain.EntityRef
	for _, record := range records {
		for _, affected := range record.AffectedEntities {
			key := affected.Ref().Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			refs = append(refs, affected.Ref())
		}
	}
	names := l.LoadNames(ctx, refs)
	for i := range records {
		for j := range records[i].AffectedEntities {
			affected := &records[i].AffectedEntities[j]
			name, ok := names[affected.Ref().Key()]
			if !ok {
				continue
			}
			// A synthesized fallback never replaces a name stored with the record.
			if name == domain.FallbackEntityName(affected.EntityID, affected.EntityType) && affected.EntityName != "" {
				continue
			}
			affected.EntityName = name
		}
	}
}
