// Package memory persists learned payee to category associations and provides
// the lazily loaded in-process cache the categorizer works against.
package memory

import (
	"context"
	"sort"
	"time"

	"fjacquet/budget-sync/internal/models"
)

// Backend names accepted by configuration.
const (
	BackendYAML     = "yaml"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendMemory   = "memory"
)

// Store is durable storage for the payee memory.
//
// Load returns an empty mapping when nothing is persisted. Save fully replaces
// the persisted state with m; callers merge in memory before saving. Clear
// removes everything so that a following Load is empty.
type Store interface {
	Load(ctx context.Context) (*models.OrderedMap, error)
	Save(ctx context.Context, m *models.OrderedMap) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats summarizes the persisted memory.
type Stats struct {
	TotalEntries     int        `json:"total_entries"`
	UniqueCategories int        `json:"unique_categories"`
	Categories       []string   `json:"categories"`
	LastModified     *time.Time `json:"last_modified"`
}

func computeStats(m *models.OrderedMap, lastModified *time.Time) Stats {
	seen := make(map[string]struct{})
	categories := []string{}
	for _, e := range m.Entries() {
		if _, ok := seen[e.Value]; ok {
			continue
		}
		seen[e.Value] = struct{}{}
		categories = append(categories, e.Value)
	}
	sort.Strings(categories)

	return Stats{
		TotalEntries:     m.Len(),
		UniqueCategories: len(categories),
		Categories:       categories,
		LastModified:     lastModified,
	}
}
