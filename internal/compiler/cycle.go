package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formstate/internal/field"
	"github.com/roach88/formstate/internal/graph"
)

// CycleWarning reports fields that watch each other in a loop.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - Fields that derive each other (amount ↔ percentage)
//   - Mutual confirmation fields
//
// At runtime each edge runs once per transaction and the step budget
// bounds the rest.
type CycleWarning struct {
	Path    []field.Name `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string       `json:"message"` // Human-readable description
	Level   string       `json:"level"`   // "warning"
}

// AnalyzeCycles performs static cycle analysis on the form's watch graph.
//
// The algorithm:
//  1. Build the reaction graph from every field's watch declaration
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with more than one field
//
// Self-watching is the normal case and is never reported. An acyclic form
// returns an empty list.
func AnalyzeCycles(f *Form) []CycleWarning {
	g, _ := f.graph()

	warnings := []CycleWarning{}
	for _, scc := range g.Cycles() {
		names := make([]field.Name, len(scc))
		for i, idx := range scc {
			names[i] = f.Names[idx]
		}
		slices.Sort(names)

		path := reconstructCyclePath(names, f.adjacency())
		parts := make([]string, len(path))
		for i, n := range path {
			parts[i] = string(n)
		}
		warnings = append(warnings, CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("Potential watch cycle detected: %s", strings.Join(parts, " → ")),
			Level:   "warning",
		})
	}

	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(string(a.Path[0]), string(b.Path[0]))
	})
	return warnings
}

// graph builds the reaction graph of the form over its sorted names.
func (f *Form) graph() (*graph.Graph, map[field.Name]int) {
	index := make(map[field.Name]int, len(f.Names))
	for i, n := range f.Names {
		index[n] = i
	}

	g := graph.New(len(f.Names))
	owned := make(map[int][]graph.Edge)
	for _, e := range f.declared() {
		t := index[e.Target]
		owned[t] = append(owned[t], graph.Edge{Source: index[e.Source], Event: e.Event, Target: t})
	}
	for t, edges := range owned {
		g.Replace(t, edges)
	}
	return g, index
}

// adjacency maps each field to the fields its events trigger, sorted.
func (f *Form) adjacency() map[field.Name][]field.Name {
	adj := make(map[field.Name][]field.Name)
	for _, e := range f.Edges() {
		if e.Source != e.Target && !slices.Contains(adj[e.Source], e.Target) {
			adj[e.Source] = append(adj[e.Source], e.Target)
		}
	}
	for k := range adj {
		slices.Sort(adj[k])
	}
	return adj
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at the first field in the SCC, follow edges to other
// SCC members, continue until we return to start.
func reconstructCyclePath(scc []field.Name, adj map[field.Name][]field.Name) []field.Name {
	if len(scc) == 0 {
		return nil
	}

	member := make(map[field.Name]bool, len(scc))
	for _, n := range scc {
		member[n] = true
	}

	start := scc[0]
	current := start
	path := []field.Name{current}
	visited := make(map[field.Name]bool)

	for {
		visited[current] = true

		var next field.Name
		for _, neighbor := range adj[current] {
			if member[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
