package categorizer

import (
	"context"

	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/similarity"
)

// FuzzyThreshold is the minimum similarity for a fuzzy memory match.
const FuzzyThreshold = 0.70

// FuzzyMemoryStrategy picks the memorized payee most similar to the payee and
// accepts it when the score reaches Threshold. Equal scores go to the entry
// memorized first.
type FuzzyMemoryStrategy struct {
	Threshold float64
}

func (s *FuzzyMemoryStrategy) Name() string {
	return StrategyFuzzyMemory
}

func (s *FuzzyMemoryStrategy) Match(_ context.Context, payee string, _, memory *models.OrderedMap) (Match, bool, error) {
	if memory.Len() == 0 {
		return Match{}, false, nil
	}

	threshold := s.Threshold
	if threshold <= 0 {
		threshold = FuzzyThreshold
	}

	best := similarity.FindBestMatch(payee, memory.Keys())
	if best.Index < 0 || best.Score < threshold {
		return Match{}, false, nil
	}

	category, _ := memory.Get(best.Candidate)
	return Match{CategoryName: category, Key: best.Candidate, Score: best.Score, Learn: true}, true, nil
}
