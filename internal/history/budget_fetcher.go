package history

import (
	"context"
	"fmt"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/models"
)

// TransactionLister is the part of the budget client used for history.
type TransactionLister interface {
	FetchTransactions(ctx context.Context, window batch.DateRange, accountID string) ([]models.Transaction, error)
}

// CategoryNamer maps category ids back to names.
type CategoryNamer interface {
	Name(ctx context.Context, id int64) (string, bool, error)
}

// BudgetFetcher reads categorized transactions of one account.
type BudgetFetcher struct {
	Transactions TransactionLister
	Categories   CategoryNamer
	AccountID    string
	Now          func() time.Time
}

// FetchHistory returns a record for every transaction since the given day that
// has a category known to the service.
func (f *BudgetFetcher) FetchHistory(ctx context.Context, since time.Time) ([]Record, error) {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	window := batch.DateRange{Start: models.TruncateToDate(since), End: models.TruncateToDate(now())}

	txs, err := f.Transactions.FetchTransactions(ctx, window, f.AccountID)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(txs))
	for _, tx := range txs {
		if tx.CategoryID == 0 {
			continue
		}
		name, ok, err := f.Categories.Name(ctx, tx.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("resolve category %d: %w", tx.CategoryID, err)
		}
		if !ok {
			continue
		}
		records = append(records, Record{Payee: tx.Payee, CategoryName: name})
	}
	return records, nil
}
