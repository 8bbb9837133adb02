package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearn_MajorityAndThreshold(t *testing.T) {
	records := []Record{
		{"Uber", "Transport"},
		{"Uber", "Food"},
		{"Uber", "Transport"},
		{"Once Only", "Shopping"},
		{"Uber", "Transport"},
	}

	got := Learn(records)
	assert.Equal(t, []models.Entry{{Key: "Uber", Value: "Transport"}}, got.Entries())
}

func TestLearn_TieGoesToFirstSeen(t *testing.T) {
	records := []Record{
		{"Coop", "Food"},
		{"Coop", "Household"},
		{"Coop", "Household"},
		{"Coop", "Food"},
	}
	v, ok := Learn(records).Get("Coop")
	require.True(t, ok)
	assert.Equal(t, "Food", v)
}

func TestLearn_OrderAndSanitizing(t *testing.T) {
	records := []Record{
		{"<Zeta>", "Z"},
		{"Alpha", "A"},
		{"Zeta", "Z"},
		{"Alpha", "A"},
		{"", "X"},
		{"Blank", " "},
		{"Blank", ""},
	}
	got := Learn(records)
	assert.Equal(t, []string{"Zeta", "Alpha"}, got.Keys())
}

type fakeFetcher struct {
	records []Record
	err     error
	since   time.Time
}

func (f *fakeFetcher) FetchHistory(_ context.Context, since time.Time) ([]Record, error) {
	f.since = since
	return f.records, f.err
}

func TestRebuild(t *testing.T) {
	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeFetcher{records: []Record{{"Uber", "Transport"}, {"Uber", "Transport"}}}

	got, err := Rebuild(context.Background(), f, since)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, since, f.since)

	f.err = errors.New("401")
	_, err = Rebuild(context.Background(), f, since)
	assert.ErrorContains(t, err, "fetch history")
}

type fakeLister struct {
	txs    []models.Transaction
	window batch.DateRange
}

func (f *fakeLister) FetchTransactions(_ context.Context, window batch.DateRange, _ string) ([]models.Transaction, error) {
	f.window = window
	return f.txs, nil
}

type fakeNamer map[int64]string

func (n fakeNamer) Name(_ context.Context, id int64) (string, bool, error) {
	name, ok := n[id]
	return name, ok, nil
}

func TestBudgetFetcher(t *testing.T) {
	lister := &fakeLister{txs: []models.Transaction{
		{Payee: "Uber", CategoryID: 4},
		{Payee: "Uncategorized", CategoryID: 0},
		{Payee: "Deleted", CategoryID: 99},
	}}
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := &BudgetFetcher{
		Transactions: lister,
		Categories:   fakeNamer{4: "Transport"},
		AccountID:    "acc",
		Now:          func() time.Time { return now },
	}

	records, err := f.FetchHistory(context.Background(), time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []Record{{Payee: "Uber", CategoryName: "Transport"}}, records)
	assert.Equal(t, "2024-01-01_2024-06-01", lister.window.String())
}
