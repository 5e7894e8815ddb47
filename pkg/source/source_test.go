package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestParseImports(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		module   string
		names    []string
		typeOnly bool
	}{
		{
			name:   "named",
			code:   "import { a, b } from './util';",
			module: "./util",
			names:  []string{"a", "b"},
		},
		{
			name:   "default",
			code:   "import util from './util';",
			module: "./util",
			names:  []string{"util"},
		},
		{
			name:   "namespace",
			code:   "import * as util from './util';",
			module: "./util",
			names:  []string{"*util"},
		},
		{
			name:   "side effect",
			code:   "import './setup';",
			module: "./setup",
		},
		{
			name:     "import type",
			code:     "import type { Shape } from './shape';",
			module:   "./shape",
			names:    []string{"Shape"},
			typeOnly: true,
		},
		{
			name:     "all bindings type qualified",
			code:     "import { type A, type B } from './types';",
			module:   "./types",
			names:    []string{"A", "B"},
			typeOnly: true,
		},
		{
			name:   "mixed bindings",
			code:   "import { type A, b } from './types';",
			module: "./types",
			names:  []string{"A", "b"},
		},
		{
			name:   "default with type binding",
			code:   "import def, { type A } from './types';",
			module: "./types",
			names:  []string{"def", "A"},
		},
		{
			name:   "re-export",
			code:   "export { a } from './util';",
			module: "./util",
			names:  []string{"a"},
		},
		{
			name:   "bare package",
			code:   "import { test } from '@playwright/test';",
			module: "@playwright/test",
			names:  []string{"test"},
		},
	}

	p := NewParser()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			imports, err := p.ParseImports(context.Background(), "file.ts", []byte(tc.code))
			require.NoError(t, err)
			require.Len(t, imports, 1)

			imp := imports[0]
			assert.Equal(t, tc.module, imp.Module)
			assert.Equal(t, tc.typeOnly, imp.TypeOnly)
			if tc.names != nil {
				assert.ElementsMatch(t, tc.names, imp.Names)
			}
			assert.Equal(t, 1, imp.LineNumber)
		})
	}
}

func TestParseImports_SyntaxError(t *testing.T) {
	p := NewParser()
	_, err := p.ParseImports(context.Background(), "broken.ts", []byte("const ok = 1;\nconst broken = ;\n"))
	require.Error(t, err)

	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "broken.ts", serr.Path)
	assert.Equal(t, 2, serr.Line)
}

func TestParseImports_TSX(t *testing.T) {
	p := NewParser()
	code := "import { h } from './jsx';\nconst el = <div>{h}</div>;\n"
	imports, err := p.ParseImports(context.Background(), "view.tsx", []byte(code))
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, "./jsx", imports[0].Module)
}

func TestResolve(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.ts":          "",
		"util.ts":          "",
		"view.tsx":         "",
		"legacy.js":        "",
		"esm.ts":           "",
		"lib/index.ts":     "",
		"nested/helper.ts": "",
	})
	from := filepath.Join(dir, "main.ts")

	tests := []struct {
		name string
		spec string
		want string
		ok   bool
	}{
		{name: "ts extension appended", spec: "./util", want: "util.ts", ok: true},
		{name: "tsx extension appended", spec: "./view", want: "view.tsx", ok: true},
		{name: "js file", spec: "./legacy", want: "legacy.js", ok: true},
		{name: "js specifier for ts source", spec: "./esm.js", want: "esm.ts", ok: true},
		{name: "directory index", spec: "./lib", want: "lib/index.ts", ok: true},
		{name: "nested", spec: "./nested/helper", want: "nested/helper.ts", ok: true},
		{name: "missing falls back to ts", spec: "./missing", want: "missing.ts", ok: true},
		{name: "bare package", spec: "lodash", ok: false},
		{name: "escapes root", spec: "../outside", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(dir, from, tc.spec)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, filepath.Join(dir, filepath.FromSlash(tc.want)), got)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/a/b", "/a/b/c.ts"))
	assert.True(t, Within("/a/b", "/a/b/..c/d.ts"))
	assert.False(t, Within("/a/b", "/a/c.ts"))
	assert.False(t, Within("/a/b", "/a"))
}

func TestStripExports(t *testing.T) {
	in := "export const a = 1;\n  export function f() {}\nexport default class C {}\nconst exported = 2;\nexport async function g() {}"
	want := "const a = 1;\n  function f() {}\nclass C {}\nconst exported = 2;\nasync function g() {}"
	assert.Equal(t, want, StripExports(in))
}

func TestStripExports_DefaultExports(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"named function", "export default function main() {}", "function main() {}"},
		{"named async function", "export default async function main() {}", "async function main() {}"},
		{"named generator", "export default function* gen() {}", "function* gen() {}"},
		{"named class", "  export default class Foo {}", "  class Foo {}"},
		{"object literal", "export default {\n  a: 1,\n};", "void {\n  a: 1,\n};"},
		{"anonymous function", "export default function () {}", "void function () {}"},
		{"anonymous class", "export default class extends Base {}", "void class extends Base {}"},
		{"arrow function", "export default async () => {}", "void async () => {}"},
		{"identifier", "export default main;", "void main;"},
		{"identifier starting with function", "export default functional;", "void functional;"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripExports(tc.in))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.ts": "import { a } from './a';\n" +
			"import type { T } from './t';\n" +
			"import { x } from 'pkg';\n" +
			"export const main = a;\n",
		"a.ts": "export const a = 1;\n",
	})

	info, err := Load(context.Background(), NewParser(), dir, filepath.Join(dir, "main.ts"))
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{filepath.Join(dir, "a.ts"): {}}, info.Dependencies)
	assert.Len(t, info.Imports, 3)
	assert.Equal(t, "\n\n\nconst main = a;\n", info.Content)
	assert.NotContains(t, info.Content, "import")
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(context.Background(), NewParser(), dir, filepath.Join(dir, "nope.ts"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.ts")
}
