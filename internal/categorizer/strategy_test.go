package categorizer

import (
	"context"
	"strings"
	"testing"

	"fjacquet/budget-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePayee(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  ACME  ", "ACME"},
		{`<ACME> "Corp"`, "ACME Corp"},
		{`a/b\c'd`, "abcd"},
		{"Café Müller", "Café Müller"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizePayee(tt.in), tt.in)
	}
}

func TestSanitizePayee_Truncates(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := SanitizePayee(long)
	assert.Len(t, []rune(got), MaxPayeeLength)
}

func TestSanitizePayee_TruncatesWithoutTrimming(t *testing.T) {
	in := strings.Repeat("a", MaxPayeeLength-1) + " " + "tail"
	got := SanitizePayee(in)
	assert.Len(t, []rune(got), MaxPayeeLength)
	assert.True(t, strings.HasSuffix(got, "a "), "the cut is not trimmed again")
}

func TestManualRuleStrategy_SkipsEmptyKeys(t *testing.T) {
	s := &ManualRuleStrategy{}
	rules := models.NewOrderedMap(models.Entry{Key: "  ", Value: "Food"}, models.Entry{Key: "shell", Value: "Fuel"})

	m, ok, err := s.Match(context.Background(), "Shell Station", rules, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Fuel", m.CategoryName)
	assert.False(t, m.Learn)
}

func TestExactMemoryStrategy_RequestsLearning(t *testing.T) {
	s := &ExactMemoryStrategy{}
	mem := models.NewOrderedMap(models.Entry{Key: "STARBUCKS", Value: "Coffee"})

	m, ok, err := s.Match(context.Background(), "Starbucks #9", nil, mem)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "STARBUCKS", m.Key)
	assert.True(t, m.Learn)

	_, ok, err = s.Match(context.Background(), "Coop", nil, mem)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFuzzyMemoryStrategy(t *testing.T) {
	s := &FuzzyMemoryStrategy{Threshold: FuzzyThreshold}
	mem := models.NewOrderedMap(models.Entry{Key: "STARBUCKS", Value: "Coffee"})

	m, ok, err := s.Match(context.Background(), "STARBUCKS #55", nil, mem)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Coffee", m.CategoryName)
	assert.InDelta(t, 0.8, m.Score, 1e-9)

	_, ok, err = s.Match(context.Background(), "Shell Station", nil, mem)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Match(context.Background(), "STARBUCKS", nil, models.NewOrderedMap())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultStrategies_Order(t *testing.T) {
	var names []string
	for _, s := range DefaultStrategies() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{StrategyManualRule, StrategyExactMemory, StrategyFuzzyMemory}, names)
}
