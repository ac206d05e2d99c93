// Package impact propagates caller counts through the call graph and
// weights them by test coverage.
package impact

import (
	"sort"

	"github.com/phobologic/coverimpact/internal/coverage"
	"github.com/phobologic/coverimpact/internal/graph"
	"github.com/phobologic/coverimpact/internal/model"
)

// Propagator computes transitive impact for functions in a graph.
//
// The impact of f is the number of its direct callers plus the impact of
// each caller, computed with a fresh copy of the set of functions already
// on the current path. A function already on the path contributes 0, so
// cycles terminate. Only top-level results are memoized; sub-results
// depend on the path that reached them.
type Propagator struct {
	g     *graph.Graph
	cache map[string]int
}

// NewPropagator returns a Propagator over g.
func NewPropagator(g *graph.Graph) *Propagator {
	return &Propagator{g: g, cache: make(map[string]int)}
}

// Impact returns the transitive impact of key.
func (p *Propagator) Impact(key string) int {
	if v, ok := p.cache[key]; ok {
		return v
	}
	v := p.impact(key, map[string]struct{}{})
	p.cache[key] = v
	return v
}

// Reset drops memoized results, e.g. after the graph was modified.
func (p *Propagator) Reset() {
	p.cache = make(map[string]int)
}

func (p *Propagator) impact(key string, visited map[string]struct{}) int {
	if _, seen := visited[key]; seen {
		return 0
	}
	visited[key] = struct{}{}

	total := p.g.CallerCount(key)
	if total == 0 {
		return 0
	}
	for _, caller := range p.g.Callers(key) {
		total += p.impact(caller, copySet(visited))
	}
	return total
}

func copySet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Score weights an impact value by the fraction of uncovered statements.
func Score(impact int, coveragePct float64) float64 {
	return float64(impact) * (1.0 - coveragePct)
}

// Calculate returns one entry per registered function, joined with its
// coverage, sorted by impact score descending. Ties are broken by raw
// impact descending, then by key. A nil cov treats every function as
// uncovered.
func Calculate(g *graph.Graph, cov *coverage.Data, prefix string) []model.ImpactEntry {
	p := NewPropagator(g)
	funcs := g.Functions()
	out := make([]model.ImpactEntry, 0, len(funcs))

	for _, rec := range funcs {
		n := p.Impact(rec.Key)
		res := cov.Lookup(rec.File, rec.Line, prefix)
		out = append(out, model.ImpactEntry{
			Function:           rec.Key,
			File:               rec.File,
			Line:               rec.Line,
			Impact:             n,
			Covered:            res.Covered,
			CoveragePercentage: res.Percentage,
			MissingLines:       res.MissingLines,
			ImpactScore:        Score(n, res.Percentage),
			IsMethod:           rec.IsMethod,
			ClassName:          rec.Class(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ImpactScore != b.ImpactScore {
			return a.ImpactScore > b.ImpactScore
		}
		if a.Impact != b.Impact {
			return a.Impact > b.Impact
		}
		return a.Function < b.Function
	})
	return out
}
