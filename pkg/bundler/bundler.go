// Package bundler concatenates every file reachable from a root entry file
// into one program with no module boundaries, each file placed after the
// files it depends on.
package bundler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/l3aro/hotbundle/internal/log"
	"github.com/l3aro/hotbundle/pkg/graph"
	"github.com/l3aro/hotbundle/pkg/source"
	"github.com/l3aro/hotbundle/pkg/types"
)

// Result is the output of one precompile pass.
type Result struct {
	// Dir is the hot-reload root the paths are under.
	Dir string
	// Code is the flat bundle text.
	Code string
	// Files lists the emitted paths in emission order.
	Files []string
	// RemovedEdges lists the edges dropped to break cycles.
	RemovedEdges []types.Edge
	// Graph is the dependency graph after cycle breaking.
	Graph types.GraphSnapshot
	// Segments maps bundle lines back to the files they came from.
	Segments []Segment
}

// Segment is the line range one file occupies in the bundle.
type Segment struct {
	Path      string
	StartLine int
	Lines     int
}

// Locate maps a 1-based bundle line to a file and a 1-based line within the
// file's excised content.
func (r *Result) Locate(line int) (string, int, bool) {
	for _, seg := range r.Segments {
		if line >= seg.StartLine && line < seg.StartLine+seg.Lines {
			return seg.Path, line - seg.StartLine + 1, true
		}
	}
	return "", 0, false
}

// Bundler builds bundles for a single root entry file.
type Bundler struct {
	dir    string
	entry  string
	parser *source.Parser
	logger log.Logger
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithLogger sets the logger used for cycle reports.
func WithLogger(l log.Logger) Option {
	return func(b *Bundler) {
		b.logger = l
	}
}

// WithParser shares an existing parser.
func WithParser(p *source.Parser) Option {
	return func(b *Bundler) {
		b.parser = p
	}
}

// New creates a bundler for entry, a file name relative to dir or an
// absolute path inside it.
func New(dir, entry string, opts ...Option) (*Bundler, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	absEntry := entry
	if !filepath.IsAbs(absEntry) {
		absEntry = filepath.Join(absDir, entry)
	}
	absEntry = filepath.Clean(absEntry)
	if !source.Within(absDir, absEntry) {
		return nil, fmt.Errorf("entry file %s is outside root %s", absEntry, absDir)
	}

	b := &Bundler{
		dir:    absDir,
		entry:  absEntry,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.parser == nil {
		b.parser = source.NewParser()
	}
	return b, nil
}

// Dir returns the absolute hot-reload root directory.
func (b *Bundler) Dir() string { return b.dir }

// Entry returns the absolute root entry file path.
func (b *Bundler) Entry() string { return b.entry }

// Precompile registers the graph from scratch, breaks its cycles and emits
// the files in dependency order. Files that become ready in the same pass
// are emitted in discovery order.
func (b *Bundler) Precompile(ctx context.Context) (*Result, error) {
	g, err := graph.Build(ctx, b.parser, b.dir, b.entry)
	if err != nil {
		return nil, err
	}

	removed := g.ClearCircularDependencies()
	for _, edge := range removed {
		b.logger.Debug("circular import removed", "from", b.rel(edge.From), "to", b.rel(edge.To))
	}

	result := &Result{
		Dir:          b.dir,
		RemovedEdges: removed,
		Graph:        g.Snapshot(),
	}
	result.Graph.RemovedEdges = removed

	order := g.Order()
	emitted := make(map[string]bool, len(order))
	chunks := make([]string, 0, len(order))
	line := 1

	for len(emitted) < len(order) {
		var ready []*types.FileInfo
		for _, path := range order {
			if emitted[path] {
				continue
			}
			info, _ := g.File(path)
			if len(info.Dependencies) == 0 {
				ready = append(ready, info)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("no emittable file among %d remaining", len(order)-len(emitted))
		}

		for _, info := range ready {
			lines := strings.Count(info.Content, "\n") + 1
			chunks = append(chunks, info.Content)
			result.Files = append(result.Files, info.Path)
			result.Segments = append(result.Segments, Segment{Path: info.Path, StartLine: line, Lines: lines})
			line += lines
			emitted[info.Path] = true
		}
		for _, info := range ready {
			g.Release(info.Path)
		}
	}

	result.Code = strings.Join(chunks, "\n")
	result.Graph.EmitOrder = result.Files
	return result, nil
}

func (b *Bundler) rel(path string) string {
	return relTo(b.dir, path)
}

// Rel returns path relative to the bundle root when possible.
func (r *Result) Rel(path string) string {
	return relTo(r.Dir, path)
}

func relTo(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil {
		return rel
	}
	return path
}
