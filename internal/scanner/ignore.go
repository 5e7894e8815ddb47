package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is one line of a .hotbundleignore file, with gitignore-style
// semantics: "!" negates, a trailing "/" matches directories only, and a
// leading "/" anchors the pattern to the root.
type IgnorePattern struct {
	pattern  string
	negation bool
	dirOnly  bool
	anchored bool
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{pattern: line}

	if strings.HasPrefix(line, "!") {
		p.negation = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") {
		// a slash in the middle anchors too
		p.anchored = true
	}

	p.segments = strings.Split(line, "/")
	return p
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.negation
}

// Match reports whether the slash-separated relative path matches. A
// directory pattern matches every path below the directory.
func (p IgnorePattern) Match(relPath string, isDir bool) bool {
	segs := strings.Split(relPath, "/")

	if p.anchored {
		return p.matchFrom(segs, isDir)
	}
	for start := 0; start < len(segs); start++ {
		if p.matchFrom(segs[start:], isDir) {
			return true
		}
	}
	return false
}

// matchFrom matches the pattern against a prefix of segs. Matching a strict
// prefix means the path lies inside a matched directory.
func (p IgnorePattern) matchFrom(segs []string, isDir bool) bool {
	for n := len(segs); n >= 1; n-- {
		if !globSegments(p.segments, segs[:n]) {
			continue
		}
		inside := n < len(segs)
		if p.dirOnly && !inside && !isDir {
			continue
		}
		return true
	}
	return false
}

// globSegments matches pattern segments against path segments, with "**"
// spanning any number of segments.
func globSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if globSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return globSegments(pattern[1:], segs[1:])
}
