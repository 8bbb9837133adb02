package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/budget-sync/internal/history"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/memory"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	records []history.Record
	err     error
	since   time.Time
}

func (f *fakeFetcher) FetchHistory(_ context.Context, since time.Time) ([]history.Record, error) {
	f.since = since
	return f.records, f.err
}

func newCache(entries ...models.Entry) (*memory.Cache, *memory.InMemoryStore) {
	store := memory.NewInMemoryStore(entries...)
	return memory.NewCache(store, logging.NewMockLogger()), store
}

func TestMemoryCommand_Subcommands(t *testing.T) {
	names := []string{}
	for _, c := range Cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"stats", "clear", "rebuild"}, names)
	assert.NotNil(t, rebuildCmd.Flags().Lookup("replace"))
	assert.NotNil(t, rebuildCmd.Flags().Lookup("since"))
}

func TestRunStats(t *testing.T) {
	cache, _ := newCache(
		models.Entry{Key: "STARBUCKS", Value: "Coffee"},
		models.Entry{Key: "MIGROS", Value: "Groceries"},
	)
	g := report.NewGenerator(logging.NewMockLogger())

	var text bytes.Buffer
	require.NoError(t, runStats(context.Background(), cache, g, &text, "text"))
	assert.Contains(t, text.String(), "Entries:    2")
	assert.Contains(t, text.String(), "  - Coffee")

	var js bytes.Buffer
	require.NoError(t, runStats(context.Background(), cache, g, &js, "json"))
	assert.Contains(t, js.String(), `"total_entries": 2`)
}

func TestRunRebuild(t *testing.T) {
	records := []history.Record{
		{Payee: "COOP", CategoryName: "Groceries"},
		{Payee: "COOP", CategoryName: "Groceries"},
		{Payee: "SBB", CategoryName: "Transport"},
		{Payee: "SBB", CategoryName: "Transport"},
		{Payee: "ONCE", CategoryName: "Misc"},
	}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("merge keeps existing entries", func(t *testing.T) {
		cache, store := newCache(models.Entry{Key: "STARBUCKS", Value: "Coffee"})
		fetcher := &fakeFetcher{records: records}

		learned, total, err := runRebuild(context.Background(), cache, fetcher, start, false)
		require.NoError(t, err)
		assert.Equal(t, 2, learned)
		assert.Equal(t, 3, total)
		assert.Equal(t, []string{"STARBUCKS", "COOP", "SBB"}, store.Snapshot().Keys())
		assert.True(t, start.Equal(fetcher.since))
	})

	t.Run("replace drops existing entries", func(t *testing.T) {
		cache, store := newCache(models.Entry{Key: "STARBUCKS", Value: "Coffee"})

		learned, total, err := runRebuild(context.Background(), cache, &fakeFetcher{records: records}, start, true)
		require.NoError(t, err)
		assert.Equal(t, 2, learned)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"COOP", "SBB"}, store.Snapshot().Keys())
	})

	t.Run("fetch failure leaves memory untouched", func(t *testing.T) {
		cache, store := newCache(models.Entry{Key: "STARBUCKS", Value: "Coffee"})

		_, _, err := runRebuild(context.Background(), cache, &fakeFetcher{err: errors.New("boom")}, start, true)
		assert.Error(t, err)
		assert.Equal(t, 1, store.Snapshot().Len())
	})
}

func TestSinceDate(t *testing.T) {
	nowFunc = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = time.Now })

	d, err := sinceDate("2024-01-02", 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d)

	d, err = sinceDate("", 10)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	_, err = sinceDate("", 0)
	assert.Error(t, err)
}
