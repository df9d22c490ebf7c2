// Package memory provides in-process implementations of every repository
// interface. State lives behind one mutex per store; returned values are copies.
package memory

import (
	"sync"
	"time"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
)

// Store holds the state shared by the in-memory repositories.
type Store struct {
	mu sync.RWMutex

	entities   map[string]domain.EntityRecord
	history    []domain.HistoryRecord
	categories map[uuid.UUID]domain.Category
	families   map[uuid.UUID]domain.Family
	users      map[uuid.UUID]domain.User
	roles      map[uuid.UUID]domain.Role

	now      func() time.Time
	lastTime time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entities:   make(map[string]domain.EntityRecord),
		categories: make(map[uuid.UUID]domain.Category),
		families:   make(map[uuid.UUID]domain.Family),
		users:      make(map[uuid.UUID]domain.User),
		roles:      make(map[uuid.UUID]domain.Role),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tick returns a strictly increasing timestamp. Callers hold s.mu.
func (s *Store) tick() time.Time {
	now := s.now().UTC()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = now
	return now
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
