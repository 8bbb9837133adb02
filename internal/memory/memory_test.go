package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLStore_MissingFileLoadsEmpty(t *testing.T) {
	s := NewYAMLStore(filepath.Join(t.TempDir(), "memory.yaml"), logging.NewMockLogger())

	m, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalEntries)
	assert.Nil(t, stats.LastModified)
	assert.Empty(t, stats.Categories)
}

func TestYAMLStore_SaveLoadKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memory.yaml")
	s := NewYAMLStore(path, logging.NewMockLogger())
	ctx := context.Background()

	in := models.NewOrderedMap(
		models.Entry{Key: "STARBUCKS", Value: "Coffee"},
		models.Entry{Key: "Migros", Value: "Groceries"},
		models.Entry{Key: "Coop", Value: "Groceries"},
	)
	require.NoError(t, s.Save(ctx, in))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.Entries(), out.Entries())

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 2, stats.UniqueCategories)
	assert.Equal(t, []string{"Coffee", "Groceries"}, stats.Categories)
	require.NotNil(t, stats.LastModified)
}

func TestYAMLStore_SaveOverwrites(t *testing.T) {
	s := NewYAMLStore(filepath.Join(t.TempDir(), "memory.yaml"), nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, models.NewOrderedMap(models.Entry{Key: "a", Value: "A"})))
	require.NoError(t, s.Save(ctx, models.NewOrderedMap(models.Entry{Key: "b", Value: "B"})))

	m, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, m.Keys())
}

func TestYAMLStore_CorruptFileLoadsEmptyWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a mapping\n"), 0600))

	logger := logging.NewMockLogger()
	s := NewYAMLStore(path, logger)

	m, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.True(t, logger.HasEntry("WARN", "Memory file is corrupt, ignoring its content"))
}

func TestYAMLStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.yaml")
	s := NewYAMLStore(path, nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, models.NewOrderedMap(models.Entry{Key: "a", Value: "A"})))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx), "clearing twice is fine")

	m, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestYAMLStore_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultFile, NewYAMLStore("", nil).Path())
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(models.Entry{Key: "Uber", Value: "Transport"})

	m, err := s.Load(ctx)
	require.NoError(t, err)
	m.Set("mutated", "x")

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Len(), "Load returns a copy")

	require.NoError(t, s.Clear(ctx))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalEntries)
	assert.Nil(t, stats.LastModified)
}

func TestCache_LoadsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(models.Entry{Key: "Uber", Value: "Transport"})
	c := NewCache(s, logging.NewMockLogger())

	assert.Equal(t, 1, c.Entries(ctx).Len())

	// Changes made behind the cache's back are not seen until Reset.
	require.NoError(t, s.Save(ctx, models.NewOrderedMap()))
	assert.Equal(t, 1, c.Entries(ctx).Len())

	c.Reset()
	assert.Equal(t, 0, c.Entries(ctx).Len())
}

func TestCache_LearnSavesOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	c := NewCache(s, logging.NewMockLogger())

	assert.True(t, c.Learn(ctx, "STARBUCKS #55", "Coffee"))
	assert.Equal(t, 1, s.Saves)

	assert.False(t, c.Learn(ctx, "STARBUCKS #55", "Coffee"))
	assert.Equal(t, 1, s.Saves)

	assert.True(t, c.Learn(ctx, "STARBUCKS #55", "Food"))
	assert.Equal(t, 2, s.Saves)

	v, ok := s.Snapshot().Get("STARBUCKS #55")
	require.True(t, ok)
	assert.Equal(t, "Food", v)
}

func TestCache_SaveFailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.SaveErr = errors.New("disk full")
	logger := logging.NewMockLogger()
	c := NewCache(s, logger)

	assert.True(t, c.Learn(ctx, "Shell", "Fuel"))

	v, ok := c.Entries(ctx).Get("Shell")
	require.True(t, ok)
	assert.Equal(t, "Fuel", v)
	assert.True(t, logger.HasEntry("WARN", "Failed to persist payee memory"))
}

func TestCache_LoadFailureStartsEmpty(t *testing.T) {
	s := NewInMemoryStore(models.Entry{Key: "a", Value: "A"})
	s.LoadErr = errors.New("boom")
	logger := logging.NewMockLogger()
	c := NewCache(s, logger)

	assert.Equal(t, 0, c.Entries(context.Background()).Len())
	assert.True(t, logger.HasEntry("WARN", "Failed to load payee memory, starting empty"))
}

func TestCache_ReplaceAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(models.Entry{Key: "a", Value: "A"})
	c := NewCache(s, nil)

	require.NoError(t, c.Replace(ctx, models.NewOrderedMap(models.Entry{Key: "b", Value: "B"})))
	assert.Equal(t, []string{"b"}, c.Entries(ctx).Keys())
	assert.Equal(t, []string{"b"}, s.Snapshot().Keys())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Entries(ctx).Len())
	assert.Equal(t, 0, s.Snapshot().Len())
}

func TestCache_Stats(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewInMemoryStore(
		models.Entry{Key: "a", Value: "Food"},
		models.Entry{Key: "b", Value: "Food"},
		models.Entry{Key: "c", Value: "Bills"},
	), nil)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, []string{"Bills", "Food"}, stats.Categories)
}
