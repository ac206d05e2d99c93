// Package graph builds a function-level call graph and resolves
// attribute-style calls to concrete method definitions.
package graph

import (
	"sort"
	"strings"

	"github.com/phobologic/coverimpact/internal/model"
)

// Graph is a directed caller -> callee graph keyed by function key.
//
// Resolved edges are kept symmetric: Resolved(b) is in calls[a] iff a is
// in calledBy[b]. Unresolved edges appear only in calls.
type Graph struct {
	funcs    map[string]model.FunctionRecord
	calls    map[string]map[model.Callee]struct{}
	calledBy map[string]map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		funcs:    make(map[string]model.FunctionRecord),
		calls:    make(map[string]map[model.Callee]struct{}),
		calledBy: make(map[string]map[string]struct{}),
	}
}

// AddFunction registers a definition, replacing any earlier record with
// the same key. Dunder names are ignored.
func (g *Graph) AddFunction(rec model.FunctionRecord) {
	if model.IsDunder(rec.Name) {
		return
	}
	g.funcs[rec.Key] = rec
}

// AddCall records caller -> callee. An unresolved callee whose text is
// exactly a registered key is stored as resolved.
func (g *Graph) AddCall(caller string, callee model.Callee) {
	if !callee.Resolved {
		if _, ok := g.funcs[callee.Name]; ok {
			callee = model.Resolved(callee.Name)
		}
	}
	if g.calls[caller] == nil {
		g.calls[caller] = make(map[model.Callee]struct{})
	}
	g.calls[caller][callee] = struct{}{}

	if callee.Resolved {
		if g.calledBy[callee.Name] == nil {
			g.calledBy[callee.Name] = make(map[string]struct{})
		}
		g.calledBy[callee.Name][caller] = struct{}{}
	}
}

// RemoveCall deletes caller -> callee from both directions.
func (g *Graph) RemoveCall(caller string, callee model.Callee) {
	delete(g.calls[caller], callee)
	if callee.Resolved {
		delete(g.calledBy[callee.Name], caller)
	}
}

// Function returns the record registered under key.
func (g *Graph) Function(key string) (model.FunctionRecord, bool) {
	rec, ok := g.funcs[key]
	return rec, ok
}

// Len returns the number of registered functions.
func (g *Graph) Len() int {
	return len(g.funcs)
}

// Functions returns all registered records sorted by key.
func (g *Graph) Functions() []model.FunctionRecord {
	out := make([]model.FunctionRecord, 0, len(g.funcs))
	for _, rec := range g.funcs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// Calls returns the callees of key, resolved first, each group sorted.
func (g *Graph) Calls(key string) []model.Callee {
	out := make([]model.Callee, 0, len(g.calls[key]))
	for c := range g.calls[key] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resolved != out[j].Resolved {
			return out[i].Resolved
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Callers returns the keys of functions calling key, sorted.
func (g *Graph) Callers(key string) []string {
	return sortedKeys(g.calledBy[key])
}

// CallerCount returns the number of distinct direct callers of key.
func (g *Graph) CallerCount(key string) int {
	return len(g.calledBy[key])
}

// ResolveMethodCalls rewrites unresolved callees to concrete definitions
// using global knowledge of every registered function:
//
//   - "a.b" and "a.b.c" resolve to every method named by the last segment.
//   - "f" resolves to the free function f in the caller's own file, or
//     else to every free function named f.
//
// Callees with four or more segments, and names with no match, stay
// unresolved. Each caller's rewrites are applied after its whole callee
// set has been examined.
func (g *Graph) ResolveMethodCalls() {
	idx := g.buildIndex()

	for _, caller := range sortedCallers(g.calls) {
		var add, remove []model.Callee

		for callee := range g.calls[caller] {
			if callee.Resolved {
				continue
			}
			targets := idx.resolve(callee.Name, g.fileOf(caller))
			if len(targets) == 0 {
				continue
			}
			remove = append(remove, callee)
			for _, key := range targets {
				add = append(add, model.Resolved(key))
			}
		}

		for _, c := range remove {
			g.RemoveCall(caller, c)
		}
		for _, c := range add {
			g.AddCall(caller, c)
		}
	}
}

func (g *Graph) fileOf(key string) string {
	if rec, ok := g.funcs[key]; ok {
		return rec.File
	}
	return ""
}

// index maps bare names to definition keys.
type index struct {
	methods   map[string][]string
	functions map[string][]string
	byFile    map[string]string // "file::name" -> key, free functions only
}

func (g *Graph) buildIndex() *index {
	idx := &index{
		methods:   make(map[string][]string),
		functions: make(map[string][]string),
		byFile:    make(map[string]string),
	}
	for _, rec := range g.Functions() {
		if rec.IsMethod {
			idx.methods[rec.Name] = append(idx.methods[rec.Name], rec.Key)
			continue
		}
		idx.functions[rec.Name] = append(idx.functions[rec.Name], rec.Key)
		idx.byFile[rec.File+"::"+rec.Name] = rec.Key
	}
	return idx
}

func (idx *index) resolve(raw, callerFile string) []string {
	parts := strings.Split(raw, ".")
	switch len(parts) {
	case 1:
		if key, ok := idx.byFile[callerFile+"::"+raw]; ok {
			return []string{key}
		}
		return idx.functions[raw]
	case 2:
		return idx.methods[parts[1]]
	case 3:
		return idx.methods[parts[2]]
	}
	return nil
}

func sortedCallers(m map[string]map[model.Callee]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
