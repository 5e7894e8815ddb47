package engine

import (
	"fmt"
	"strings"
)

// CompileError is a transpile, syntax or top-level evaluation failure.
type CompileError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *CompileError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return e.Message
}

// RuntimeError is an uncaught error thrown while the entry point ran.
type RuntimeError struct {
	Message string
	Stack   string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
