package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
	"github.com/vito/pqm/pkg/pqm"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	gutterStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	caretStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

// reportError prints a source snippet for a failed file when w is a
// terminal. The error message itself is printed once all files are done.
func reportError(w io.Writer, res *fileResult) {
	if !isTerminal(w) {
		return
	}
	ds, ok := pqm.AsDiagnostics(res.err)
	if !ok {
		return
	}
	for _, d := range ds {
		fmt.Fprint(w, renderSnippet(d, res.path, res.source, terminalWidth(w)))
	}
}

// renderSnippet styles a plain diagnostic snippet line by line, truncating
// lines wider than width. A width of zero disables truncation.
func renderSnippet(d pqm.Diagnostic, filename, source string, width int) string {
	plain := strings.TrimSuffix(d.Snippet(filename, source), "\n")

	var out strings.Builder
	for _, line := range strings.Split(plain, "\n") {
		if width > 0 && ansi.StringWidth(line) > width {
			line = ansi.Truncate(line, width, "…")
		}
		out.WriteString(styleSnippetLine(line))
		out.WriteByte('\n')
	}
	return out.String()
}

func styleSnippetLine(line string) string {
	switch {
	case strings.HasPrefix(line, "error:"):
		return headerStyle.Render(line)
	case strings.HasPrefix(line, "  -->"):
		return locationStyle.Render(line)
	case strings.Trim(line, " ^") == "" && strings.Contains(line, "^"):
		indent := len(line) - len(strings.TrimLeft(line, " "))
		return line[:indent] + caretStyle.Render(line[indent:])
	}
	if gutter, code, ok := strings.Cut(line, "|"); ok {
		return gutterStyle.Render(gutter+"|") + code
	}
	return line
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(f.Fd())
	if err != nil {
		return 0
	}
	return width
}
