package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Diagnostic tags written by the run loop.
const (
	TagCompilationError = "COMPILATION_ERROR"
	TagCodeError        = "CODE_ERROR"
	TagFailurePrefix    = "ERROR"
)

var (
	compileTagStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	codeTagStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	failureTagStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
)

// Diagnostics writes "TAG: message" lines to a console sink and, optionally,
// mirrors them to a second writer such as a rotating file.
type Diagnostics struct {
	mu     sync.Mutex
	out    io.Writer
	mirror io.Writer
	colors bool
}

// NewDiagnostics creates a diagnostics channel on out. mirror may be nil.
func NewDiagnostics(out, mirror io.Writer) *Diagnostics {
	if out == nil {
		out = os.Stdout
	}
	return &Diagnostics{
		out:    out,
		mirror: mirror,
		colors: IsTerminal(out),
	}
}

// Emit writes one diagnostic. Multi-line messages are folded onto one line.
func (d *Diagnostics) Emit(tag, message string) {
	message = strings.Join(strings.Fields(strings.ReplaceAll(message, "\n", " ")), " ")

	d.mu.Lock()
	defer d.mu.Unlock()

	shown := tag
	if d.colors {
		shown = styleFor(tag).Render(tag)
	}
	fmt.Fprintf(d.out, "%s: %s\n", shown, message)
	if d.mirror != nil {
		fmt.Fprintf(d.mirror, "%s: %s\n", tag, message)
	}
}

// FailureTag returns the numbered tag for the n-th harness failure.
func FailureTag(n int) string {
	return fmt.Sprintf("%s:%d", TagFailurePrefix, n)
}

func styleFor(tag string) lipgloss.Style {
	switch {
	case tag == TagCompilationError:
		return compileTagStyle
	case tag == TagCodeError:
		return codeTagStyle
	default:
		return failureTagStyle
	}
}
