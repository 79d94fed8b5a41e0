package engine

import "github.com/roach88/formstate/internal/graph"

// edgeHistory records the reaction edges already walked in one dispatch
// transaction.
//
// Walking each (source, event, target) edge at most once is what makes
// two-node and N-node watch cycles terminate: the second time a cycle
// reaches an edge, the edge is skipped. It is scoped to a transaction, so
// the next user event starts with a clean history.
type edgeHistory map[graph.Edge]struct{}

// Seen reports whether the edge already ran in this transaction.
func (h edgeHistory) Seen(e graph.Edge) bool {
	_, ok := h[e]
	return ok
}

// Record marks the edge as walked.
func (h edgeHistory) Record(e graph.Edge) {
	h[e] = struct{}{}
}
