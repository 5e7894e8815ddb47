package source

import (
	"os"
	"path/filepath"
	"strings"
)

// Extensions lists the file extensions tried, in order, when an import
// specifier names a file without one.
var Extensions = []string{".ts", ".tsx", ".mts", ".js", ".mjs"}

// IsRelative reports whether spec is a relative module specifier.
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// Within reports whether path lies inside dir.
func Within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Resolve maps an import specifier found in fromFile to an absolute path
// inside dir. Bare package specifiers and paths escaping dir are not
// resolved. When no candidate exists on disk the most likely candidate is
// returned anyway so that reading it fails with a useful message.
func Resolve(dir, fromFile, spec string) (string, bool) {
	if !IsRelative(spec) {
		return "", false
	}

	base := filepath.Clean(filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(spec)))
	if !Within(dir, base) {
		return "", false
	}

	for _, candidate := range candidates(base) {
		if isFile(candidate) {
			return candidate, true
		}
	}

	if hasKnownExtension(base) {
		return base, true
	}
	return base + Extensions[0], true
}

func candidates(base string) []string {
	var out []string
	ext := strings.ToLower(filepath.Ext(base))
	if hasKnownExtension(base) {
		out = append(out, base)
		// './util.js' written for a './util.ts' source
		if ext == ".js" || ext == ".mjs" {
			stem := strings.TrimSuffix(base, filepath.Ext(base))
			out = append(out, stem+".ts", stem+".tsx", stem+".mts")
		}
		return out
	}
	for _, e := range Extensions {
		out = append(out, base+e)
	}
	for _, e := range Extensions {
		out = append(out, filepath.Join(base, "index"+e))
	}
	return out
}

func hasKnownExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
