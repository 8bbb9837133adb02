package categorizer

import (
	"context"
	"strings"

	"fjacquet/budget-sync/internal/models"
)

// ExactMemoryStrategy matches when the payee contains a memorized payee,
// ignoring case, in memory order.
type ExactMemoryStrategy struct{}

func (s *ExactMemoryStrategy) Name() string {
	return StrategyExactMemory
}

func (s *ExactMemoryStrategy) Match(_ context.Context, payee string, _, memory *models.OrderedMap) (Match, bool, error) {
	if memory.Len() == 0 {
		return Match{}, false, nil
	}
	m, ok := containsMatch(strings.ToLower(payee), memory)
	m.Learn = ok
	return m, ok, nil
}
