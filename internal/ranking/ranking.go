// Package ranking combines impact scores with predicted test complexity
// into a single testing priority.
package ranking

import (
	"sort"

	"github.com/phobologic/coverimpact/internal/model"
)

const (
	// DefaultComplexity is assumed for functions with no prediction.
	DefaultComplexity = 0.5
	// DefaultConfidence is assumed for functions with no prediction interval.
	DefaultConfidence = 1.0

	smoothing = 0.1
)

// Effort maps a complexity in [0, 1] to an effort in [1, 3].
func Effort(complexity float64) float64 {
	return 1.0 + complexity*2.0
}

// Priority scores a function from its normalized impact (0-100), its
// predicted complexity and the confidence of that prediction.
func Priority(normalizedImpact, complexity, confidence float64) float64 {
	effort := Effort(complexity)
	return (normalizedImpact * confidence) / ((complexity + smoothing) * (effort + smoothing))
}

// Prioritize ranks entries by priority. complexity and confidence are
// keyed by function key; missing keys take the package defaults. Either
// map may be nil.
//
// Impact scores are normalized so the maximum becomes 100. The result is
// sorted by priority descending, then raw impact descending, then key.
// Entries with zero raw impact are dropped unless every entry has zero
// impact.
func Prioritize(entries []model.ImpactEntry, complexity, confidence map[string]float64) []model.PriorityEntry {
	maxScore := 0.0
	for i := range entries {
		if entries[i].ImpactScore > maxScore {
			maxScore = entries[i].ImpactScore
		}
	}
	if maxScore == 0 {
		maxScore = 1.0
	}

	out := make([]model.PriorityEntry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		c, ok := complexity[e.Function]
		if !ok {
			c = DefaultComplexity
		}
		conf, ok := confidence[e.Function]
		if !ok {
			conf = DefaultConfidence
		}
		norm := e.ImpactScore / maxScore * 100.0

		out = append(out, model.PriorityEntry{
			ImpactEntry:      e,
			ComplexityScore:  c,
			Confidence:       conf,
			NormalizedImpact: norm,
			Effort:           Effort(c),
			Priority:         Priority(norm, c, conf),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Impact != b.Impact {
			return a.Impact > b.Impact
		}
		return a.Function < b.Function
	})

	return dropUnreferenced(out)
}

// dropUnreferenced removes zero-impact entries, keeping the input intact
// when nothing has impact.
func dropUnreferenced(entries []model.PriorityEntry) []model.PriorityEntry {
	kept := entries[:0:0]
	for i := range entries {
		if entries[i].Impact > 0 {
			kept = append(kept, entries[i])
		}
	}
	if len(kept) == 0 {
		return entries
	}
	return kept
}

// Top returns at most n entries. n <= 0 means all.
func Top(entries []model.PriorityEntry, n int) []model.PriorityEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
