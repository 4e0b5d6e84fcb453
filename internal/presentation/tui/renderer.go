package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// RenderProgram writes the program outline to w, styled when styled is set
// and as plain Markdown otherwise.
func RenderProgram(w io.Writer, p *ast.Program, styled bool) error {
	md := ast.Outline(p)
	if styled {
		out, err := NewRenderer()(md)
		if err != nil {
			return fmt.Errorf("render outline: %w", err)
		}
		md = out
	}
	_, err := io.WriteString(w, md)
	return err
}
