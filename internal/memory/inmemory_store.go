package memory

import (
	"context"
	"sync"
	"time"

	"fjacquet/budget-sync/internal/models"
)

// InMemoryStore is a Store that lives only as long as the process. It backs the
// "memory" backend and the tests.
type InMemoryStore struct {
	mu       sync.Mutex
	data     *models.OrderedMap
	modified *time.Time

	// Injected failures.
	LoadErr  error
	SaveErr  error
	ClearErr error

	// Saves counts successful Save calls.
	Saves int
}

// NewInMemoryStore creates a store seeded with the given entries.
func NewInMemoryStore(entries ...models.Entry) *InMemoryStore {
	s := &InMemoryStore{data: models.NewOrderedMap(entries...)}
	if len(entries) > 0 {
		now := time.Now()
		s.modified = &now
	}
	return s
}

func (s *InMemoryStore) Load(_ context.Context) (*models.OrderedMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return models.NewOrderedMap(), s.LoadErr
	}
	return s.data.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, m *models.OrderedMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.data = m.Clone()
	now := time.Now()
	s.modified = &now
	s.Saves++
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClearErr != nil {
		return s.ClearErr
	}
	s.data = models.NewOrderedMap()
	s.modified = nil
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeStats(s.data, s.modified), nil
}

// Snapshot returns a copy of the stored mapping.
func (s *InMemoryStore) Snapshot() *models.OrderedMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}
