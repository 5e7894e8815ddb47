// Package types defines the core data structures shared by the registry,
// the dependency graph and the bundler.
package types

import "sort"

// Import represents one import declaration found in a source file.
type Import struct {
	Module     string   `json:"module" yaml:"module" msgpack:"module"`
	Names      []string `json:"names,omitempty" yaml:"names,omitempty" msgpack:"names,omitempty"`
	TypeOnly   bool     `json:"type_only" yaml:"type_only" msgpack:"type_only"`
	Resolved   string   `json:"resolved,omitempty" yaml:"resolved,omitempty" msgpack:"resolved,omitempty"`
	LineNumber int      `json:"line_number" yaml:"line_number" msgpack:"line_number"`

	// StartByte and EndByte delimit the whole declaration in the source.
	StartByte uint32 `json:"-" yaml:"-" msgpack:"-"`
	EndByte   uint32 `json:"-" yaml:"-" msgpack:"-"`
}

// FileInfo is the registry's record for one source file.
type FileInfo struct {
	Path         string
	Content      string
	Dependencies map[string]struct{}
	Imports      []Import
}

// NewFileInfo creates an empty FileInfo for path.
func NewFileInfo(path string) *FileInfo {
	return &FileInfo{
		Path:         path,
		Dependencies: make(map[string]struct{}),
	}
}

// SortedDependencies returns the dependency set in lexicographic order.
func (f *FileInfo) SortedDependencies() []string {
	deps := make([]string, 0, len(f.Dependencies))
	for dep := range f.Dependencies {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// Edge is a single import edge between two registered files.
type Edge struct {
	From string `json:"from" yaml:"from" msgpack:"from"`
	To   string `json:"to" yaml:"to" msgpack:"to"`
}

// GraphNode is the exported form of one file in a dependency graph.
type GraphNode struct {
	Path         string   `json:"path" yaml:"path" msgpack:"path"`
	Dependencies []string `json:"dependencies" yaml:"dependencies" msgpack:"dependencies"`
	Dependents   []string `json:"dependents" yaml:"dependents" msgpack:"dependents"`
	Imports      []Import `json:"imports" yaml:"imports" msgpack:"imports"`
}

// GraphSnapshot is a serializable view of a dependency graph.
type GraphSnapshot struct {
	Root         string      `json:"root" yaml:"root" msgpack:"root"`
	Nodes        []GraphNode `json:"nodes" yaml:"nodes" msgpack:"nodes"`
	RemovedEdges []Edge      `json:"removed_edges" yaml:"removed_edges" msgpack:"removed_edges"`
	EmitOrder    []string    `json:"emit_order" yaml:"emit_order" msgpack:"emit_order"`
}
