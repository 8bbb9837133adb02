// Package category resolves category names chosen by the categorizer into the
// numeric identifiers of the budgeting service.
package category

import (
	"context"
	"strings"
	"sync"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"
)

// Lister fetches the full category list from the budgeting service.
type Lister interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// Resolver maps names to ids through a cache built lazily on the first lookup.
// The cache never expires on its own; call Invalidate after categories change.
type Resolver struct {
	lister Lister
	logger logging.Logger

	mu    sync.Mutex
	byKey map[string]int64
	names map[int64]string
}

// NewResolver creates a Resolver over lister.
func NewResolver(lister Lister, logger logging.Logger) *Resolver {
	return &Resolver{lister: lister, logger: logging.OrDefault(logger)}
}

// Resolve returns the id of the category called name, compared case-insensitively.
// A blank name is never found and does not trigger a fetch. A failed fetch
// returns a *syncerror.CategoryFetchError and leaves the cache empty.
func (r *Resolver) Resolve(ctx context.Context, name string) (int64, bool, error) {
	key := normalize(name)
	if key == "" {
		return 0, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return 0, false, err
	}
	id, ok := r.byKey[key]
	return id, ok, nil
}

// Name returns the category name for id, fetching the list if needed.
func (r *Resolver) Name(ctx context.Context, id int64) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return "", false, err
	}
	name, ok := r.names[id]
	return name, ok, nil
}

// Invalidate drops the cache; the next lookup fetches again.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = nil
	r.names = nil
}

func (r *Resolver) ensureLoaded(ctx context.Context) error {
	if r.byKey != nil {
		return nil
	}

	categories, err := r.lister.ListCategories(ctx)
	if err != nil {
		return &syncerror.CategoryFetchError{Err: err}
	}

	byKey := make(map[string]int64, len(categories))
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		k := normalize(c.Name)
		if k == "" {
			continue
		}
		// First definition wins when the service returns duplicate names.
		if _, dup := byKey[k]; !dup {
			byKey[k] = c.ID
		}
		names[c.ID] = c.Name
	}
	r.byKey = byKey
	r.names = names

	r.logger.Debug("Loaded category map", logging.F(logging.FieldCount, len(byKey)))
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
