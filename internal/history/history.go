// Package history rebuilds the payee memory from categorized transactions
// already present in the budgeting service.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fjacquet/budget-sync/internal/categorizer"
	"fjacquet/budget-sync/internal/models"
)

// MinOccurrences is how many times the winning category must be seen for a
// payee before it is learned.
const MinOccurrences = 2

// Record is one historical categorized transaction.
type Record struct {
	Payee        string
	CategoryName string
}

// Fetcher supplies the historical records since a date.
type Fetcher interface {
	FetchHistory(ctx context.Context, since time.Time) ([]Record, error)
}

type tally struct {
	order  []string
	counts map[string]int
}

// Rebuild learns payee -> category by majority vote. Payees are sanitized the
// same way the categorizer does it, records without payee or category are
// ignored. On equal counts the category seen first wins. The result lists
// payees in order of first appearance.
func Rebuild(ctx context.Context, fetcher Fetcher, since time.Time) (*models.OrderedMap, error) {
	records, err := fetcher.FetchHistory(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return Learn(records), nil
}

// Learn applies the majority vote to records.
func Learn(records []Record) *models.OrderedMap {
	var payees []string
	tallies := make(map[string]*tally)

	for _, r := range records {
		payee := categorizer.SanitizePayee(r.Payee)
		category := strings.TrimSpace(r.CategoryName)
		if payee == "" || category == "" {
			continue
		}

		t, ok := tallies[payee]
		if !ok {
			t = &tally{counts: make(map[string]int)}
			tallies[payee] = t
			payees = append(payees, payee)
		}
		if _, seen := t.counts[category]; !seen {
			t.order = append(t.order, category)
		}
		t.counts[category]++
	}

	learned := models.NewOrderedMap()
	for _, payee := range payees {
		t := tallies[payee]
		best, bestCount := "", 0
		for _, c := range t.order {
			if n := t.counts[c]; n > bestCount {
				best, bestCount = c, n
			}
		}
		if bestCount >= MinOccurrences {
			learned.Set(payee, best)
		}
	}
	return learned
}
