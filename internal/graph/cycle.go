package graph

// Cycles returns the strongly connected components of the field-level
// graph that contain more than one field. Self-watching is the normal case
// for form fields and is not reported.
//
// Cycles are legal at runtime; the dispatch transaction bounds them. The
// result is meant for static warnings.
func (g *Graph) Cycles() [][]int {
	adj := make([][]int, len(g.out))
	for src := range g.out {
		seen := make(map[int]bool)
		for _, targets := range g.out[src] {
			for _, t := range targets {
				if t != src && !seen[t] {
					seen[t] = true
					adj[src] = append(adj[src], t)
				}
			}
		}
	}

	var sccs [][]int
	for _, scc := range tarjanSCC(adj) {
		if len(scc) > 1 {
			sccs = append(sccs, scc)
		}
	}
	return sccs
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in index order, so the output is deterministic.
func tarjanSCC(adj [][]int) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop the component
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range adj {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	return sccs
}
