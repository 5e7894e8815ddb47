package scanner

import (
	"path/filepath"
)

// Orphans returns the scanned files that are not in reachable, which holds
// absolute paths such as a bundle's emitted file list.
func Orphans(files []FileInfo, reachable []string) []FileInfo {
	seen := make(map[string]bool, len(reachable))
	for _, path := range reachable {
		seen[filepath.Clean(path)] = true
	}

	var orphans []FileInfo
	for _, f := range files {
		if !seen[filepath.Clean(f.FullPath)] {
			orphans = append(orphans, f)
		}
	}
	return orphans
}
