package syncer

import (
	"context"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/categorizer"
	"fjacquet/budget-sync/internal/models"
)

// Source produces raw movements, amounts already in major units. A movement the
// source cannot convert is returned with Invalid set, not dropped.
type Source interface {
	Name() string
	FetchMovements(ctx context.Context, window batch.DateRange) ([]models.Transaction, error)
}

// Target is the budgeting service account transactions are synchronized into.
type Target interface {
	// FetchTransactions returns every transaction of the account in window.
	FetchTransactions(ctx context.Context, window batch.DateRange, accountID string) ([]models.Transaction, error)

	// InsertTransactions inserts one batch, at most batch.MaxSize transactions.
	InsertTransactions(ctx context.Context, accountID string, txs []models.Transaction) error
}

// Categorizer assigns categories to payees.
type Categorizer interface {
	AssignCategory(ctx context.Context, payee string, rules *models.OrderedMap) (categorizer.Assignment, bool, error)
}

// RulesSource provides the manual rules for a run.
type RulesSource interface {
	Load(ctx context.Context) (*models.OrderedMap, error)
}

// StaticRules is a RulesSource returning a fixed mapping.
type StaticRules struct {
	Rules *models.OrderedMap
}

func (s StaticRules) Load(context.Context) (*models.OrderedMap, error) {
	if s.Rules == nil {
		return models.NewOrderedMap(), nil
	}
	return s.Rules, nil
}
