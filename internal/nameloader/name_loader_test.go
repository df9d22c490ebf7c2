package nameloader

import (
	"context"
	"sync"
	"testing"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	names map[string]string
}

func (s *countingSource) GetEntityNames(_ context.Context, refs []domain.EntityRef) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		if name, ok := s.names[ref.Key()]; ok {
			out[ref.Key()] = name
			continue
		}
		out[ref.Key()] = domain.FallbackEntityName(ref.EntityID, ref.EntityType)
	}
	return out
}

func TestLoadNamesBatchesLookups(t *testing.T) {
	known := domain.EntityRef{EntityID: uuid.New(), EntityType: domain.EntityTypeCategory}
	unknown := domain.EntityRef{EntityID: uuid.New(), EntityType: domain.EntityTypeFamily}
	source := &countingSource{names: map[string]string{known.Key(): "Laptops"}}
	loader := NewNameLoader(source)

	names := loader.LoadNames(context.Background(), []domain.EntityRef{known, unknown})

	assert.Equal(t, "Laptops", names[known.Key()])
	assert.Equal(t, domain.FallbackEntityName(unknown.EntityID, unknown.EntityType), names[unknown.Key()])
	assert.Equal(t, 1, source.calls)

	// Cached per loader.
	names = loader.LoadNames(context.Background(), []domain.EntityRef{known})
	assert.Equal(t, "Laptops", names[known.Key()])
	assert.Equal(t, 1, source.calls)
}

func TestRefreshAffectedNamesKeepsStoredNameOverFallback(t *testing.T) {
	renamed := domain.EntityRef{EntityID: uuid.New(), EntityType: domain.EntityTypeCategory}
	purged := domain.EntityRef{EntityID: uuid.New(), EntityType: domain.EntityTypeFamily}
	source := &countingSource{names: map[string]string{renamed.Key(): "Notebooks"}}
	loader := NewNameLoader(source)

	records := []domain.HistoryRecord{{
		AffectedEntities: []domain.AffectedEntity{
			{EntityID: renamed.EntityID, EntityType: renamed.EntityType, EntityName: "Laptops", Role: domain.RolePrimary},
			{EntityID: purged.EntityID, EntityType: purged.EntityType, EntityName: "Old Family", Role: domain.RoleSecondary},
		},
	}, {
		AffectedEntities: []domain.AffectedEntity{
			{EntityID: renamed.EntityID, EntityType: renamed.EntityType, EntityName: "Laptops", Role: domain.RoleSecondary},
		},
	}}

	loader.RefreshAffectedNames(context.Background(), records)

	require.Len(t, records[0].AffectedEntities, 2)
	assert.Equal(t, "Notebooks", records[0].AffectedEntities[0].EntityName)
	assert.Equal(t, "Old Family", records[0].AffectedEntities[1].EntityName)
	assert.Equal(t, "Notebooks", records[1].AffectedEntities[0].EntityName)
	assert.Equal(t, 1, source.calls)
}

func TestLoadNamesEmpty(t *testing.T) {
	source := &countingSource{}
	names := NewNameLoader(source).LoadNames(context.Background(), nil)
	assert.Empty(t, names)
	assert.Zero(t, source.calls)
}
