// Package scanner walks a hot-reload root and lists its script files,
// honouring .hotbundleignore files with gitignore-style patterns. The
// orphans report compares that list with the files a bundle reached.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FileInfo represents information about a discovered script file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Language string // typescript or javascript
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string   // Name of the ignore file (default: .hotbundleignore)
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".hotbundleignore",
		DefaultExcludes: []string{
			"node_modules",
			".git",
			"dist",
			"build",
			"out",
			"coverage",
			".next",
			"playwright-report",
			"test-results",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
	fs   afero.Fs
}

// New creates a Scanner on the real filesystem.
func New(opts Options) *Scanner {
	return NewWithFs(afero.NewOsFs(), opts)
}

// NewWithFs creates a Scanner on fs.
func NewWithFs(fs afero.Fs, opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = DefaultOptions().IgnoreFileName
	}
	return &Scanner{opts: opts, fs: fs}
}

// Scan recursively scans root and returns its script files sorted by path.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := s.fs.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("reading root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", absRoot)
	}

	ignorePatterns, err := s.loadIgnorePatterns(absRoot, "")
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo

	err = afero.Walk(s.fs, absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		relPathSlash := filepath.ToSlash(relPath)

		if s.opts.SkipHidden && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if s.isDefaultExcluded(info.Name()) || matchesIgnorePatterns(relPathSlash, true, ignorePatterns) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path, relPathSlash)
			if err == nil && len(nested) > 0 {
				ignorePatterns = append(ignorePatterns, nested...)
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 || !IsScript(info.Name()) {
			return nil
		}
		if matchesIgnorePatterns(relPathSlash, false, ignorePatterns) {
			return nil
		}

		files = append(files, FileInfo{
			Path:     relPathSlash,
			FullPath: path,
			Language: DetectLanguage(filepath.Ext(path)),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// isDefaultExcluded checks if the name matches default exclusion patterns.
func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns loads the ignore file in dir. Patterns of a nested
// file are rooted at that directory, so they are prefixed with base.
func (s *Scanner) loadIgnorePatterns(dir, base string) ([]IgnorePattern, error) {
	file, err := s.fs.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if base != "" {
			neg := ""
			if strings.HasPrefix(line, "!") {
				neg, line = "!", line[1:]
			}
			if strings.HasPrefix(line, "/") || strings.Contains(strings.TrimSuffix(line, "/"), "/") {
				line = neg + "/" + base + "/" + strings.TrimPrefix(line, "/")
			} else {
				line = neg + "/" + base + "/**/" + line
			}
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}

	return patterns, sc.Err()
}

// matchesIgnorePatterns applies patterns in order; a later negation can
// re-include a path an earlier pattern ignored.
func matchesIgnorePatterns(relPath string, isDir bool, patterns []IgnorePattern) bool {
	ignored := false
	for _, pattern := range patterns {
		if pattern.Match(relPath, isDir) {
			ignored = !pattern.IsNegation()
		}
	}
	return ignored
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
