package graph

import "github.com/l3aro/hotbundle/pkg/types"

// FindCircularDependency walks the graph depth-first from the root and
// returns the first edge that points back into the active path.
//
// Dependencies are explored in lexicographic order, so the edge returned for
// a given graph never depends on map iteration order.
func (g *Graph) FindCircularDependency() (types.Edge, bool) {
	visited := make(map[string]bool)
	importing := make(map[string]bool)

	var walk func(path string) (types.Edge, bool)
	walk = func(path string) (types.Edge, bool) {
		info, ok := g.files[path]
		if !ok {
			return types.Edge{}, false
		}

		importing[path] = true
		defer delete(importing, path)

		for _, dep := range info.SortedDependencies() {
			if importing[dep] {
				return types.Edge{From: path, To: dep}, true
			}
			if visited[dep] {
				continue
			}
			if edge, found := walk(dep); found {
				return edge, true
			}
		}

		visited[path] = true
		return types.Edge{}, false
	}

	return walk(g.root)
}

// ClearCircularDependencies removes one edge per detected cycle until the
// graph is acyclic and returns the removed edges in removal order.
func (g *Graph) ClearCircularDependencies() []types.Edge {
	var removed []types.Edge
	for {
		edge, found := g.FindCircularDependency()
		if !found {
			return removed
		}
		g.RemoveEdge(edge)
		removed = append(removed, edge)
	}
}
