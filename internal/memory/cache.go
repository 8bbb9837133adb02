package memory

import (
	"context"
	"errors"
	"sync"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"
)

// Cache is the in-process view of a Store. It loads once, on first use, and
// writes every change straight back to the store.
type Cache struct {
	store  Store
	logger logging.Logger

	mu     sync.Mutex
	loaded bool
	data   *models.OrderedMap
}

// NewCache wraps store.
func NewCache(store Store, logger logging.Logger) *Cache {
	return &Cache{store: store, logger: logging.OrDefault(logger)}
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

// Entries returns the cached mapping, loading it on the first call. A load
// failure is logged and the memory starts empty.
// The returned map is owned by the cache and must not be modified.
func (c *Cache) Entries(ctx context.Context) *models.OrderedMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)
	return c.data
}

// Learn records payee -> category. When this changes the mapping the full
// memory is saved before returning; a failed save is logged and the cached
// entry is kept. It reports whether the mapping changed.
func (c *Cache) Learn(ctx context.Context, payee, category string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)

	if !c.data.Set(payee, category) {
		return false
	}

	c.logger.Debug("Learned payee association",
		logging.F(logging.FieldPayee, payee),
		logging.F(logging.FieldCategory, category))

	if err := c.store.Save(ctx, c.data); err != nil {
		c.logger.WithError(asPersistenceError("save", err)).Warn("Failed to persist payee memory",
			logging.F(logging.FieldPayee, payee))
	}
	return true
}

// Replace swaps the whole mapping and saves it.
func (c *Cache) Replace(ctx context.Context, m *models.OrderedMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(ctx, m); err != nil {
		return err
	}
	c.data = m.Clone()
	c.loaded = true
	return nil
}

// Clear empties the store and the cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.data = models.NewOrderedMap()
	c.loaded = true
	return nil
}

// Reset forgets the cached mapping so the next access reloads it.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.data = nil
}

func (c *Cache) ensureLoaded(ctx context.Context) {
	if c.loaded {
		return
	}
	m, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WithError(asPersistenceError("load", err)).Warn("Failed to load payee memory, starting empty")
		m = models.NewOrderedMap()
	}
	if m == nil {
		m = models.NewOrderedMap()
	}
	c.data = m
	c.loaded = true
}

func asPersistenceError(op string, err error) error {
	var pe *syncerror.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &syncerror.PersistenceError{Op: op, Backend: "custom", Err: err}
}

// Stats reports on the persisted memory.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Stats(ctx)
}
