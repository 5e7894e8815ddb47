package bundler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/hotbundle/internal/log"
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

func precompile(t *testing.T, dir, entry string) *Result {
	t.Helper()
	b, err := New(dir, entry, WithLogger(log.Nop()))
	require.NoError(t, err)
	result, err := b.Precompile(context.Background())
	require.NoError(t, err)
	return result
}

func emitted(r *Result) []string {
	out := make([]string, len(r.Files))
	for i, f := range r.Files {
		out[i] = filepath.ToSlash(r.Rel(f))
	}
	return out
}

func TestNew_EntryOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir, "../escape.ts")
	assert.Error(t, err)
}

func TestPrecompile_Ordering(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"hot-reload.ts": "import { greet } from './greet';\nimport { NAME } from './consts';\nexport function hotReload() { return greet(NAME); }\n",
		"greet.ts":      "import { PREFIX } from './consts';\nexport function greet(n: string) { return PREFIX + n; }\n",
		"consts.ts":     "export const PREFIX = 'hi ';\nexport const NAME = 'x';\n",
	})

	result := precompile(t, dir, "hot-reload.ts")
	assert.Equal(t, []string{"consts.ts", "greet.ts", "hot-reload.ts"}, emitted(result))

	consts := strings.Index(result.Code, "const PREFIX")
	greet := strings.Index(result.Code, "function greet")
	entry := strings.Index(result.Code, "function hotReload")
	assert.True(t, consts < greet && greet < entry)

	assert.NotContains(t, result.Code, "import ")
	assert.NotContains(t, result.Code, "export ")
}

func TestPrecompile_SameLevelKeepsDiscoveryOrder(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import './z';\nimport './a';\nimport './m';\n",
		"z.ts":    "const z = 1;",
		"a.ts":    "const a = 1;",
		"m.ts":    "const m = 1;",
	})

	result := precompile(t, dir, "root.ts")
	assert.Equal(t, []string{"z.ts", "a.ts", "m.ts", "root.ts"}, emitted(result))
}

func TestPrecompile_CycleScenario(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.ts": "import { b } from './b';\nexport const a = () => b();\n",
		"b.ts": "import { a } from './a';\nimport { c } from './c';\nexport const b = () => c;\n",
		"c.ts": "export const c = 1;\n",
	})

	result := precompile(t, dir, "a.ts")
	assert.Equal(t, []string{"c.ts", "b.ts", "a.ts"}, emitted(result))
	require.Len(t, result.RemovedEdges, 1)
	assert.Equal(t, "b.ts", result.Rel(result.RemovedEdges[0].From))
	assert.Equal(t, "a.ts", result.Rel(result.RemovedEdges[0].To))
	assert.Equal(t, result.RemovedEdges, result.Graph.RemovedEdges)
}

func TestPrecompile_TypeOnlyScenario(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import type { Shape } from './d';\nexport function hotReload(s: Shape) {}\n",
		"d.ts":    "export interface Shape { w: number }\n",
	})

	result := precompile(t, dir, "root.ts")
	assert.Equal(t, []string{"root.ts"}, emitted(result))
	assert.NotContains(t, result.Code, "interface Shape")
}

func TestPrecompile_Idempotent(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import './b';\nimport './c';\nimport './d';\n",
		"b.ts":    "import './d';\nconst b = 1;",
		"c.ts":    "import './b';\nconst c = 1;",
		"d.ts":    "import './c';\nconst d = 1;",
	})

	first := precompile(t, dir, "root.ts")
	second := precompile(t, dir, "root.ts")
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, first.RemovedEdges, second.RemovedEdges)
}

func TestPrecompile_EveryFileEmittedOnce(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import './a';\nimport './b';\n",
		"a.ts":    "import './b';\nimport './root';\nconst a = 1;",
		"b.ts":    "import './a';\nconst b = 1;",
	})

	result := precompile(t, dir, "root.ts")
	assert.ElementsMatch(t, []string{"root.ts", "a.ts", "b.ts"}, emitted(result))
	assert.Len(t, result.Graph.EmitOrder, 3)
}

func TestPrecompile_Errors(t *testing.T) {
	t.Run("missing entry", func(t *testing.T) {
		dir := t.TempDir()
		b, err := New(dir, "hot-reload.ts", WithLogger(log.Nop()))
		require.NoError(t, err)
		_, err = b.Precompile(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing dependency", func(t *testing.T) {
		dir := writeTree(t, map[string]string{"root.ts": "import { x } from './gone';\n"})
		b, err := New(dir, "root.ts", WithLogger(log.Nop()))
		require.NoError(t, err)
		_, err = b.Precompile(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gone.ts")
	})
}

func TestResult_Locate(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"root.ts": "import './lib';\nconst r1 = 1;\nconst r2 = 2;",
		"lib.ts":  "const l1 = 1;\nconst l2 = 2;",
	})

	result := precompile(t, dir, "root.ts")
	lines := strings.Split(result.Code, "\n")
	require.Len(t, lines, 5)

	path, line, ok := result.Locate(2)
	require.True(t, ok)
	assert.Equal(t, "lib.ts", result.Rel(path))
	assert.Equal(t, 2, line)

	path, line, ok = result.Locate(5)
	require.True(t, ok)
	assert.Equal(t, "root.ts", result.Rel(path))
	assert.Equal(t, 3, line)

	_, _, ok = result.Locate(6)
	assert.False(t, ok)
}
