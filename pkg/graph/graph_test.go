package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/hotbundle/pkg/source"
	"github.com/l3aro/hotbundle/pkg/types"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func build(t *testing.T, dir, root string) *Graph {
	t.Helper()
	g, err := Build(context.Background(), source.NewParser(), dir, filepath.Join(dir, root))
	require.NoError(t, err)
	return g
}

func rel(dir string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		r, _ := filepath.Rel(dir, p)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestRegisterSourceCode_DiscoveryOrder(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.ts": "import { b } from './b';\nimport { c } from './c';\n",
		"b.ts": "import { d } from './d';\nexport const b = 1;\n",
		"c.ts": "import { d } from './d';\nexport const c = 1;\n",
		"d.ts": "export const d = 1;\n",
		"e.ts": "export const unreachable = 1;\n",
	})

	g := build(t, dir, "a.ts")
	assert.Equal(t, []string{"a.ts", "b.ts", "c.ts", "d.ts"}, rel(dir, g.Order()))
	assert.Equal(t, 4, g.Len())

	dependents := g.Dependents(filepath.Join(dir, "d.ts"))
	var paths []string
	for _, d := range dependents {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"b.ts", "c.ts"}, rel(dir, paths))
}

func TestRegisterSourceCode_TypeOnlyNeverRegistered(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import type { Shape } from './d';\nimport { type Size } from './d';\nexport const x = 1;\n",
		"d.ts":    "export interface Shape {}\nexport type Size = number;\n",
	})

	g := build(t, dir, "root.ts")
	assert.Equal(t, 1, g.Len())
	_, ok := g.File(filepath.Join(dir, "d.ts"))
	assert.False(t, ok)

	root, _ := g.File(filepath.Join(dir, "root.ts"))
	assert.Empty(t, root.Dependencies)
}

func TestRegisterSourceCode_OutOfRootExcluded(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "hot")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "outside.ts"), []byte("export const o = 1;\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.ts"), []byte("import { o } from '../outside';\nimport { z } from 'zod';\n"), 0644))

	g := build(t, dir, "root.ts")
	assert.Equal(t, 1, g.Len())
}

func TestRegisterSourceCode_MissingDependency(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import { x } from './missing';\n",
	})

	_, err := Build(context.Background(), source.NewParser(), dir, filepath.Join(dir, "root.ts"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.ts")
}

func TestRegisterSourceCode_ParseError(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import { x } from './bad';\n",
		"bad.ts":  "export const x = ;\n",
	})

	_, err := Build(context.Background(), source.NewParser(), dir, filepath.Join(dir, "root.ts"))
	require.Error(t, err)

	var serr *source.SyntaxError
	assert.ErrorAs(t, err, &serr)
}

func TestRegisterSourceCode_Cancelled(t *testing.T) {
	dir := writeTree(t, map[string]string{"root.ts": "export const x = 1;\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, source.NewParser(), dir, filepath.Join(dir, "root.ts"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClearCircularDependencies_Scenario(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.ts": "import { b } from './b';\nexport const a = () => b;\n",
		"b.ts": "import { a } from './a';\nimport { c } from './c';\nexport const b = () => a() + c;\n",
		"c.ts": "export const c = 1;\n",
	})
	g := build(t, dir, "a.ts")

	removed := g.ClearCircularDependencies()
	require.Len(t, removed, 1)
	assert.Equal(t, types.Edge{From: filepath.Join(dir, "b.ts"), To: filepath.Join(dir, "a.ts")}, removed[0])

	_, found := g.FindCircularDependency()
	assert.False(t, found)

	a, _ := g.File(filepath.Join(dir, "a.ts"))
	assert.Empty(t, g.Dependents(a.Path))
}

func TestClearCircularDependencies_Deterministic(t *testing.T) {
	files := map[string]string{
		"root.ts": "import './z';\nimport './m';\n",
		"m.ts":    "import './z';\nimport './root';\n",
		"z.ts":    "import './m';\n",
	}

	var first []types.Edge
	for i := 0; i < 5; i++ {
		dir := writeTree(t, files)
		g := build(t, dir, "root.ts")
		removed := g.ClearCircularDependencies()

		edges := make([]types.Edge, len(removed))
		for j, e := range removed {
			edges[j] = types.Edge{From: rel(dir, []string{e.From})[0], To: rel(dir, []string{e.To})[0]}
		}
		if first == nil {
			first = edges
			continue
		}
		assert.Equal(t, first, edges)
	}

	assert.Equal(t, []types.Edge{
		{From: "m.ts", To: "root.ts"},
		{From: "z.ts", To: "m.ts"},
	}, first)
}

func TestClearCircularDependencies_Acyclic(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.ts": "import './b';\nimport './c';\n",
		"b.ts": "import './c';\nimport './d';\n",
		"c.ts": "import './d';\nimport './a';\n",
		"d.ts": "import './b';\nimport './a';\n",
	})
	g := build(t, dir, "a.ts")

	removed := g.ClearCircularDependencies()
	assert.NotEmpty(t, removed)

	_, found := g.FindCircularDependency()
	assert.False(t, found)

	for _, e := range removed {
		from, _ := g.File(e.From)
		assert.NotContains(t, from.Dependencies, e.To)
	}
}

func TestRelease(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.ts": "import './c';\n",
		"b.ts": "import './c';\n",
		"c.ts": "",
		"r.ts": "import './a';\nimport './b';\n",
	})
	g := build(t, dir, "r.ts")

	c := filepath.Join(dir, "c.ts")
	g.Release(c)

	a, _ := g.File(filepath.Join(dir, "a.ts"))
	b, _ := g.File(filepath.Join(dir, "b.ts"))
	assert.NotContains(t, a.Dependencies, c)
	assert.NotContains(t, b.Dependencies, c)
	assert.Empty(t, g.Dependents(c))
}

func TestSnapshot(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.ts": "import { b } from './b';\n",
		"b.ts": "export const b = 1;\n",
	})
	g := build(t, dir, "a.ts")

	snap := g.Snapshot()
	assert.Equal(t, filepath.Join(dir, "a.ts"), snap.Root)
	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, []string{filepath.Join(dir, "b.ts")}, snap.Nodes[0].Dependencies)
	assert.Equal(t, []string{filepath.Join(dir, "a.ts")}, snap.Nodes[1].Dependents)
	require.Len(t, snap.Nodes[0].Imports, 1)
	assert.Equal(t, "./b", snap.Nodes[0].Imports[0].Module)
}
