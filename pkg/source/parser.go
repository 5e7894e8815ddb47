// Package source reads individual script files and turns them into
// registry records: the import declarations they contain, the in-root files
// those imports resolve to, and the module-free text that goes into a bundle.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/l3aro/hotbundle/pkg/types"
)

// SyntaxError reports the first ERROR or MISSING node of a parse tree.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
	Text   string
}

func (e *SyntaxError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error near %q", e.Path, e.Line, e.Column, e.Text)
}

// Parser parses TypeScript and JavaScript import declarations using tree-sitter.
// A Parser is not safe for concurrent use.
type Parser struct {
	ts  *sitter.Parser
	tsx *sitter.Parser
}

// NewParser creates a parser for .ts/.js sources and a separate one for .tsx/.jsx.
func NewParser() *Parser {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())

	x := sitter.NewParser()
	x.SetLanguage(tsx.GetLanguage())

	return &Parser{ts: ts, tsx: x}
}

// ParseImports returns every import declaration of a file, plus every
// re-export that names a source module, in source order.
func (p *Parser) ParseImports(ctx context.Context, path string, content []byte) ([]types.Import, error) {
	parser := p.ts
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx", ".jsx":
		parser = p.tsx
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			text := nodeText(bad, content)
			if len(text) > 40 {
				text = text[:40]
			}
			return nil, &SyntaxError{
				Path:   path,
				Line:   int(bad.StartPoint().Row) + 1,
				Column: int(bad.StartPoint().Column) + 1,
				Text:   strings.TrimSpace(text),
			}
		}
	}

	var imports []types.Import
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Type() {
		case "import_statement":
			if imp := parseImportStatement(child, content); imp != nil {
				imports = append(imports, *imp)
			}
		case "export_statement":
			// export { x } from './y' and export * from './y'
			if imp := parseReExport(child, content); imp != nil {
				imports = append(imports, *imp)
			}
		}
	}

	return imports, nil
}

// parseImportStatement parses "import x from 'module'", "import type { X } from 'module'",
// "import 'module'" and "import x = require('module')".
func parseImportStatement(node *sitter.Node, content []byte) *types.Import {
	imp := &types.Import{
		LineNumber: int(node.StartPoint().Row) + 1,
		StartByte:  node.StartByte(),
		EndByte:    node.EndByte(),
	}

	declTypeOnly := false
	var clause *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}

		switch child.Type() {
		case "type", "typeof":
			declTypeOnly = true
		case "string":
			imp.Module = cleanModulePath(nodeText(child, content))
		case "import_clause":
			clause = child
		case "import_require_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				reqChild := child.Child(j)
				if reqChild == nil {
					continue
				}
				switch reqChild.Type() {
				case "identifier":
					imp.Names = append(imp.Names, nodeText(reqChild, content))
				case "string":
					imp.Module = cleanModulePath(nodeText(reqChild, content))
				}
			}
		}
	}

	if imp.Module == "" {
		return nil
	}

	bindingsTypeOnly := false
	if clause != nil {
		var names []string
		names, bindingsTypeOnly = parseImportClause(clause, content)
		imp.Names = append(imp.Names, names...)
	}
	imp.TypeOnly = declTypeOnly || bindingsTypeOnly

	return imp
}

// parseImportClause returns the imported names and whether every binding is
// type-qualified. A default or namespace binding is always a value binding.
func parseImportClause(node *sitter.Node, content []byte) ([]string, bool) {
	var names []string
	values, typed := 0, 0

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}

		switch child.Type() {
		case "identifier":
			names = append(names, nodeText(child, content))
			values++
		case "namespace_import":
			for j := 0; j < int(child.ChildCount()); j++ {
				alias := child.Child(j)
				if alias != nil && alias.Type() == "identifier" {
					names = append(names, "*"+nodeText(alias, content))
					break
				}
			}
			values++
		case "named_imports":
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec == nil || spec.Type() != "import_specifier" {
					continue
				}
				name, isType := parseSpecifier(spec, content)
				if name != "" {
					names = append(names, name)
				}
				if isType {
					typed++
				} else {
					values++
				}
			}
		}
	}

	return names, values == 0 && typed > 0
}

// parseSpecifier handles { x }, { x as y } and { type X }.
func parseSpecifier(node *sitter.Node, content []byte) (string, bool) {
	isType := false
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = nodeText(n, content)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "type", "typeof":
			isType = true
		case "identifier":
			if name == "" {
				name = nodeText(child, content)
			}
		}
	}

	return name, isType
}

// parseReExport handles export statements that carry a source module.
func parseReExport(node *sitter.Node, content []byte) *types.Import {
	src := node.ChildByFieldName("source")
	if src == nil {
		return nil
	}

	imp := &types.Import{
		Module:     cleanModulePath(nodeText(src, content)),
		LineNumber: int(node.StartPoint().Row) + 1,
		StartByte:  node.StartByte(),
		EndByte:    node.EndByte(),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "type":
			imp.TypeOnly = true
		case "*":
			imp.Names = append(imp.Names, "*")
		case "export_clause":
			values, typed := 0, 0
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec == nil || spec.Type() != "export_specifier" {
					continue
				}
				name, isType := parseSpecifier(spec, content)
				if name != "" {
					imp.Names = append(imp.Names, name)
				}
				if isType {
					typed++
				} else {
					values++
				}
			}
			if values == 0 && typed > 0 {
				imp.TypeOnly = true
			}
		}
	}

	return imp
}

// firstErrorNode finds the first ERROR or MISSING node in document order.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if bad := firstErrorNode(child); bad != nil {
			return bad
		}
	}
	return nil
}

// cleanModulePath removes quotes from module path.
func cleanModulePath(path string) string {
	return strings.Trim(path, "\"'`")
}

// nodeText extracts the text content of a node from the source.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint32(len(content)) || end > uint32(len(content)) {
		return ""
	}
	return string(content[start:end])
}
