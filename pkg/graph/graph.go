// Package graph holds the dependency graph of a hot-reload root: one FileInfo
// per registered file, the order files were discovered in, and a reverse
// index from a file to the files that depend on it.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/l3aro/hotbundle/pkg/source"
	"github.com/l3aro/hotbundle/pkg/types"
)

// Graph is the aggregate of every file reachable from the root entry file.
type Graph struct {
	dir     string
	root    string
	files   map[string]*types.FileInfo
	order   []string
	reverse map[string][]*types.FileInfo
}

// New creates an empty graph anchored at root, which must lie inside dir.
// Both paths are expected to be absolute.
func New(dir, root string) *Graph {
	return &Graph{
		dir:     dir,
		root:    root,
		files:   make(map[string]*types.FileInfo),
		reverse: make(map[string][]*types.FileInfo),
	}
}

// Build creates a graph and registers everything reachable from root.
func Build(ctx context.Context, p *source.Parser, dir, root string) (*Graph, error) {
	g := New(dir, root)
	if err := g.RegisterSourceCode(ctx, p, root); err != nil {
		return nil, err
	}
	return g, nil
}

// RegisterSourceCode registers path and, transitively, every in-root file it
// imports. Files are visited through a FIFO worklist, so discovery order is
// breadth-first in import order. Any unreadable or unparsable file aborts
// the whole pass.
func (g *Graph) RegisterSourceCode(ctx context.Context, p *source.Parser, path string) error {
	queue := []string{path}
	queued := map[string]bool{path: true}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := queue[0]
		queue = queue[1:]
		if _, ok := g.files[current]; ok {
			continue
		}

		info, err := source.Load(ctx, p, g.dir, current)
		if err != nil {
			return fmt.Errorf("registering %s: %w", current, err)
		}
		g.files[current] = info
		g.order = append(g.order, current)

		for _, imp := range info.Imports {
			if imp.Resolved == "" || imp.TypeOnly {
				continue
			}
			if queued[imp.Resolved] {
				continue
			}
			if _, ok := g.files[imp.Resolved]; ok {
				continue
			}
			queued[imp.Resolved] = true
			queue = append(queue, imp.Resolved)
		}
	}

	g.rebuildReverse()
	return nil
}

// rebuildReverse derives the reverse index from the forward edges.
func (g *Graph) rebuildReverse() {
	g.reverse = make(map[string][]*types.FileInfo, len(g.files))
	for _, path := range g.order {
		info := g.files[path]
		for _, dep := range info.SortedDependencies() {
			g.reverse[dep] = append(g.reverse[dep], info)
		}
	}
}

// Root returns the root entry file path.
func (g *Graph) Root() string { return g.root }

// Dir returns the hot-reload root directory.
func (g *Graph) Dir() string { return g.dir }

// Len returns the number of registered files.
func (g *Graph) Len() int { return len(g.files) }

// File returns the FileInfo registered for path.
func (g *Graph) File(path string) (*types.FileInfo, bool) {
	info, ok := g.files[path]
	return info, ok
}

// Order returns registered paths in discovery order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependents returns the files that still depend on path.
func (g *Graph) Dependents(path string) []*types.FileInfo {
	return g.reverse[path]
}

// Release removes path from the dependency set of every file that depends on
// it and drops its reverse index entry. The bundler calls this once path has
// been emitted.
func (g *Graph) Release(path string) {
	for _, dependent := range g.reverse[path] {
		delete(dependent.Dependencies, path)
	}
	delete(g.reverse, path)
}

// RemoveEdge deletes a single forward edge and its reverse index entry.
func (g *Graph) RemoveEdge(edge types.Edge) {
	from, ok := g.files[edge.From]
	if !ok {
		return
	}
	delete(from.Dependencies, edge.To)

	dependents := g.reverse[edge.To]
	for i, dependent := range dependents {
		if dependent == from {
			g.reverse[edge.To] = append(dependents[:i:i], dependents[i+1:]...)
			break
		}
	}
	if len(g.reverse[edge.To]) == 0 {
		delete(g.reverse, edge.To)
	}
}

// Snapshot returns a serializable view of the current edges.
func (g *Graph) Snapshot() types.GraphSnapshot {
	snap := types.GraphSnapshot{Root: g.root}
	for _, path := range g.order {
		info := g.files[path]
		var dependents []string
		for _, d := range g.reverse[path] {
			dependents = append(dependents, d.Path)
		}
		sort.Strings(dependents)

		snap.Nodes = append(snap.Nodes, types.GraphNode{
			Path:         path,
			Dependencies: info.SortedDependencies(),
			Dependents:   dependents,
			Imports:      info.Imports,
		})
	}
	return snap
}
