package categorizer

import (
	"context"

	"fjacquet/budget-sync/internal/models"
)

// Strategy is one layer of the categorization chain. The engine asks each
// strategy in order and stops at the first match.
type Strategy interface {
	// Match looks for a category for the already sanitized payee using the
	// manual rules and the memorized payees. Neither map may be modified.
	Match(ctx context.Context, payee string, rules, memory *models.OrderedMap) (Match, bool, error)

	// Name identifies the strategy in logs and assignments.
	Name() string
}

// Match is what a strategy found.
type Match struct {
	CategoryName string
	// Key is the rule keyword or memorized payee that matched.
	Key   string
	Score float64
	// Learn asks the engine to memorize payee -> CategoryName.
	Learn bool
}

// Strategy names.
const (
	StrategyManualRule  = "ManualRule"
	StrategyExactMemory = "ExactMemory"
	StrategyFuzzyMemory = "FuzzyMemory"
)

// DefaultStrategies returns the fixed chain: manual rules, then exact memory,
// then fuzzy memory.
func DefaultStrategies() []Strategy {
	return []Strategy{
		&ManualRuleStrategy{},
		&ExactMemoryStrategy{},
		&FuzzyMemoryStrategy{Threshold: FuzzyThreshold},
	}
}
