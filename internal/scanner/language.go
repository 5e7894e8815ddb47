package scanner

import (
	"strings"
)

// languageMap maps script file extensions to their dialect.
var languageMap = map[string]string{
	".ts":  "typescript",
	".tsx": "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
}

// DetectLanguage returns the dialect for a file extension, or "" when the
// file is not a script.
func DetectLanguage(ext string) string {
	return languageMap[strings.ToLower(ext)]
}

// IsScript reports whether name is a script source. Declaration files are
// not scripts.
func IsScript(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	dot := strings.LastIndexByte(lower, '.')
	if dot < 0 {
		return false
	}
	return DetectLanguage(lower[dot:]) != ""
}
