package coupling

import (
	"cmp"
	"slices"
)

// Rank orders candidates by count, highest first, breaking ties by path in
// ascending order, and keeps at most maxCount of them. maxCount <= 0 means
// DefaultMaxCount. The input slice is not modified.
func Rank(candidates []Candidate, maxCount int) []Candidate {
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}

	ranked := slices.Clone(candidates)
	slices.SortFunc(ranked, func(a, b Candidate) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})

	if len(ranked) > maxCount {
		ranked = ranked[:maxCount]
	}
	if ranked == nil {
		ranked = []Candidate{}
	}
	return ranked
}
