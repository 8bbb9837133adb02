package categorizer

import (
	"context"
	"strings"

	"fjacquet/budget-sync/internal/models"
)

// ManualRuleStrategy matches when the payee contains a rule keyword,
// ignoring case. Rules are tried in file order. Matches are never memorized.
type ManualRuleStrategy struct{}

func (s *ManualRuleStrategy) Name() string {
	return StrategyManualRule
}

func (s *ManualRuleStrategy) Match(_ context.Context, payee string, rules, _ *models.OrderedMap) (Match, bool, error) {
	if rules.Len() == 0 {
		return Match{}, false, nil
	}
	m, ok := containsMatch(strings.ToLower(payee), rules)
	return m, ok, nil
}

// containsMatch returns the first entry of m whose lower-cased key is a
// substring of lowerPayee. Empty keys never match.
func containsMatch(lowerPayee string, m *models.OrderedMap) (Match, bool) {
	for _, e := range m.Entries() {
		key := strings.ToLower(strings.TrimSpace(e.Key))
		if key == "" {
			continue
		}
		if strings.Contains(lowerPayee, key) {
			return Match{CategoryName: e.Value, Key: e.Key, Score: 1}, true
		}
	}
	return Match{}, false
}
