// Package categorizer assigns budget categories to payees. Manual rules are
// tried first, then the learned payee memory (containment, then fuzzy
// similarity). Memory matches are learned back under the exact payee.
package categorizer

import (
	"context"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/memory"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"
)

// Resolver turns a category name into the budgeting service id.
type Resolver interface {
	Resolve(ctx context.Context, name string) (int64, bool, error)
}

// Assignment is the result of a successful categorization.
type Assignment struct {
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Strategy     string  `json:"strategy"`
	Score        float64 `json:"score"`
}

// Engine runs the strategy chain against a memory cache.
type Engine struct {
	strategies []Strategy
	memory     *memory.Cache
	resolver   Resolver
	logger     logging.Logger
}

// NewEngine creates an Engine using DefaultStrategies.
func NewEngine(cache *memory.Cache, resolver Resolver, logger logging.Logger) *Engine {
	return NewEngineWithStrategies(cache, resolver, logger, DefaultStrategies()...)
}

// NewEngineWithStrategies creates an Engine with a custom chain.
func NewEngineWithStrategies(cache *memory.Cache, resolver Resolver, logger logging.Logger, strategies ...Strategy) *Engine {
	return &Engine{
		strategies: strategies,
		memory:     cache,
		resolver:   resolver,
		logger:     logging.OrDefault(logger),
	}
}

// AssignCategory finds the category for payee.
//
// It returns false without error when the payee is empty after sanitizing,
// when no strategy matches, or when the chosen category name is unknown to the
// budgeting service. Errors come from a failing strategy or category fetch and
// are *syncerror.CategorizationError.
func (e *Engine) AssignCategory(ctx context.Context, payee string, rules *models.OrderedMap) (Assignment, bool, error) {
	clean := SanitizePayee(payee)
	if clean == "" {
		return Assignment{}, false, nil
	}

	mem := e.memory.Entries(ctx)

	var (
		match    Match
		strategy string
		found    bool
	)
	for _, s := range e.strategies {
		m, ok, err := s.Match(ctx, clean, rules, mem)
		if err != nil {
			return Assignment{}, false, &syncerror.CategorizationError{Payee: clean, Strategy: s.Name(), Err: err}
		}
		if ok {
			match, strategy, found = m, s.Name(), true
			break
		}
	}

	log := e.logger.WithFields(logging.F(logging.FieldPayee, clean))
	if !found {
		log.Debug("No category found")
		return Assignment{}, false, nil
	}

	if match.Learn {
		e.memory.Learn(ctx, clean, match.CategoryName)
	}

	id, ok, err := e.resolver.Resolve(ctx, match.CategoryName)
	if err != nil {
		return Assignment{}, false, &syncerror.CategorizationError{Payee: clean, Strategy: strategy, Err: err}
	}
	if !ok {
		log.Warn("Category not found in budgeting service, leaving uncategorized",
			logging.F(logging.FieldCategory, match.CategoryName),
			logging.F(logging.FieldStrategy, strategy))
		return Assignment{}, false, nil
	}

	log.Debug("Category assigned",
		logging.F(logging.FieldCategory, match.CategoryName),
		logging.F(logging.FieldStrategy, strategy),
		logging.F(logging.FieldScore, match.Score))

	return Assignment{
		CategoryID:   id,
		CategoryName: match.CategoryName,
		Strategy:     strategy,
		Score:        match.Score,
	}, true, nil
}

// Memory exposes the cache the engine learns into.
func (e *Engine) Memory() *memory.Cache {
	return e.memory
}
