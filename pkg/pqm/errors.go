package pqm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Diagnostic is a problem found in the source.
type Diagnostic struct {
	Message string
	Span    Span
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("Line %d: %s", d.Span.Line, d.Message)
}

// Snippet renders the diagnostic against its source: a header, the location,
// up to two lines of context on each side, and a caret underline.
func (d Diagnostic) Snippet(filename, source string) string {
	lines := strings.Split(source, "\n")
	if d.Span.Line < 1 || d.Span.Line > len(lines) {
		return d.Error()
	}
	if filename == "" {
		filename = "<input>"
	}

	var result strings.Builder

	fmt.Fprintf(&result, "error: %s\n", d.Message)
	fmt.Fprintf(&result, "  --> %s:%d:%d\n", filename, d.Span.Line, d.Span.Column)
	fmt.Fprintf(&result, " %s |\n", padLeft("", gutterWidth))

	startLine := max(1, d.Span.Line-2)
	endLine := min(len(lines), d.Span.Line+2)

	for i := startLine; i <= endLine; i++ {
		line := strings.TrimRight(lines[i-1], "\r")
		fmt.Fprintf(&result, " %s | %s\n", padLeft(fmt.Sprint(i), gutterWidth), line)
		if i == d.Span.Line {
			padding := strings.Repeat(" ", 1+gutterWidth+3+d.Span.Column-1)
			fmt.Fprintf(&result, "%s%s\n", padding, strings.Repeat("^", d.underlineWidth(line)))
		}
	}

	fmt.Fprintf(&result, " %s |\n", padLeft("", gutterWidth))

	return result.String()
}

const gutterWidth = 3

// underlineWidth is the number of carets to draw, clamped to the rest of the
// reported line.
func (d Diagnostic) underlineWidth(line string) int {
	width := d.Span.Len()
	rest := len([]rune(line)) - (d.Span.Column - 1)
	if width > rest {
		width = rest
	}
	return max(1, width)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// Diagnostics is the ordered list of problems returned by Format and
// Validate. Parsing is fail-fast, so it holds at most one entry today.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// AsDiagnostics extracts the diagnostics carried by err, if any.
func AsDiagnostics(err error) (Diagnostics, bool) {
	var ds Diagnostics
	if errors.As(err, &ds) {
		return ds, true
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return Diagnostics{*d}, true
	}
	return nil, false
}
