package source

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/l3aro/hotbundle/pkg/types"
)

var (
	// exportPrefix matches a leading export keyword, and a following default
	// keyword, at the start of a line.
	exportPrefix = regexp.MustCompile(`^(\s*)export\s+(default\s+)?`)

	// namedDeclaration matches a function, async function or class
	// declaration and captures its name.
	namedDeclaration = regexp.MustCompile(`^(?:(?:async\s+)?function\b\s*\*?\s*|class\s+)([A-Za-z_$][\w$]*)`)
)

// Load reads path and builds its FileInfo. Imports that resolve inside dir
// and are not type-only become dependencies; every import declaration is
// excised from the content regardless.
func Load(ctx context.Context, p *Parser, dir, path string) (*types.FileInfo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}

	imports, err := p.ParseImports(ctx, path, content)
	if err != nil {
		return nil, err
	}

	info := types.NewFileInfo(path)
	for i := range imports {
		resolved, ok := Resolve(dir, path, imports[i].Module)
		if !ok {
			continue
		}
		imports[i].Resolved = resolved
		if !imports[i].TypeOnly {
			info.Dependencies[resolved] = struct{}{}
		}
	}

	info.Imports = imports
	info.Content = StripExports(Excise(content, imports))
	return info, nil
}

// Excise removes the byte range of every import from content.
func Excise(content []byte, imports []types.Import) string {
	ranges := make([]types.Import, len(imports))
	copy(ranges, imports)
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].StartByte < ranges[j].StartByte
	})

	var sb strings.Builder
	sb.Grow(len(content))

	pos := uint32(0)
	for _, r := range ranges {
		if r.StartByte < pos || r.EndByte > uint32(len(content)) {
			continue
		}
		sb.Write(content[pos:r.StartByte])
		pos = r.EndByte
	}
	sb.Write(content[pos:])

	return sb.String()
}

// StripExports removes the leading export keyword from each line so the
// declaration stays visible to sibling code once concatenated.
//
// export default loses default only in front of a named function, async
// function or class declaration. Any other default export is an expression
// and is kept as one with void, so `export default { a: 1 }` does not turn
// into a block.
func StripExports(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		loc := exportPrefix.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		indent, rest := line[loc[2]:loc[3]], line[loc[1]:]
		if loc[4] >= 0 && !isNamedDeclaration(rest) {
			rest = "void " + rest
		}
		lines[i] = indent + rest
	}
	return strings.Join(lines, "\n")
}

func isNamedDeclaration(text string) bool {
	m := namedDeclaration.FindStringSubmatch(text)
	return m != nil && m[1] != "extends"
}
