// Package graph implements the reaction graph: which fields must re-run
// their responder when an event happens on a watched field.
//
// Fields are addressed by their arena index. Edges from (source, event) to
// targets are kept in insertion order, and every edge is owned by its
// target so re-registering a field replaces exactly the edges it declared.
package graph

import (
	"slices"

	"github.com/roach88/formstate/internal/field"
)

// Edge triggers Target's responder when Event happens on Source.
type Edge struct {
	Source int
	Event  field.Event
	Target int
}

// Self reports whether the edge is a field watching itself.
func (e Edge) Self() bool { return e.Source == e.Target }

// Graph is a directed multigraph of (source, event) → target edges.
// It is not safe for concurrent use; the field store serializes access.
type Graph struct {
	out   [][field.NumEvents][]int
	owned [][]Edge
}

// New creates a graph over n fields with no edges.
func New(n int) *Graph {
	return &Graph{
		out:   make([][field.NumEvents][]int, n),
		owned: make([][]Edge, n),
	}
}

// Len returns the number of fields.
func (g *Graph) Len() int { return len(g.out) }

// Replace tears down every edge target owns, then installs edges.
// Edges whose Target differs from target are ignored; duplicates collapse.
func (g *Graph) Replace(target int, edges []Edge) {
	g.Clear(target)

	owned := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Target != target || !e.Event.Valid() || slices.Contains(owned, e) {
			continue
		}
		slot := &g.out[e.Source][e.Event-1]
		*slot = append(*slot, target)
		owned = append(owned, e)
	}
	g.owned[target] = owned
}

// Clear removes every edge target owns. Edges where target is only the
// watched source belong to other fields and survive.
func (g *Graph) Clear(target int) {
	for _, e := range g.owned[target] {
		slot := &g.out[e.Source][e.Event-1]
		if i := slices.Index(*slot, target); i >= 0 {
			*slot = slices.Delete(*slot, i, i+1)
		}
	}
	g.owned[target] = nil
}

// Targets returns the fields triggered by ev on source, in insertion order.
// The returned slice is a copy and may be kept across mutations.
func (g *Graph) Targets(source int, ev field.Event) []int {
	if !ev.Valid() {
		return nil
	}
	return slices.Clone(g.out[source][ev-1])
}

// Owned returns the edges target declared.
func (g *Graph) Owned(target int) []Edge {
	return slices.Clone(g.owned[target])
}

// Edges returns every edge ordered by source, event, then insertion.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for src := range g.out {
		for i, targets := range g.out[src] {
			for _, t := range targets {
				out = append(out, Edge{Source: src, Event: field.Event(i + 1), Target: t})
			}
		}
	}
	return out
}
