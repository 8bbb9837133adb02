// Package similarity scores how alike two payee strings are using the Dice
// coefficient over character bigrams. Store number suffixes and small typos keep
// a high score, unrelated merchants score close to zero.
package similarity

import "strings"

// Match is the outcome of FindBestMatch. Index is -1 when there were no candidates.
type Match struct {
	Candidate string
	Index     int
	Score     float64
}

// Score returns the Dice coefficient of the bigram sets of a and b, in [0,1].
// Comparison is case-insensitive. Strings shorter than two characters score 0
// unless they are equal.
func Score(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1
	}

	setA := bigrams(a)
	setB := bigrams(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for bg := range setA {
		if _, ok := setB[bg]; ok {
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(setA)+len(setB))
}

// FindBestMatch returns the candidate scoring highest against target.
// On equal scores the earliest candidate wins.
func FindBestMatch(target string, candidates []string) Match {
	best := Match{Index: -1}
	for i, c := range candidates {
		s := Score(target, c)
		if best.Index == -1 || s > best.Score {
			best = Match{Candidate: c, Index: i, Score: s}
		}
	}
	return best
}

func bigrams(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	set := make(map[string]struct{}, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}
