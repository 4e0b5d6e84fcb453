package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/botlink/internal/presentation/graph"
	"github.com/aretw0/botlink/internal/presentation/tui"
	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/internal/validator"
)

// ShowOptions selects how a program is printed.
type ShowOptions struct {
	Styled  bool
	Mermaid bool
}

// Show writes a program's outline, or its Mermaid flowchart.
func Show(path string, out io.Writer, opts ShowOptions) error {
	program, err := loadProgram(path)
	if err != nil {
		return err
	}
	if opts.Mermaid {
		_, err := io.WriteString(out, graph.GenerateMermaid(program, graph.DefaultShapes, nil))
		return err
	}
	return tui.RenderProgram(out, program, opts.Styled)
}

// Validate checks a program against the built-in function table without running it.
func Validate(path string, out io.Writer) error {
	program, err := loadProgram(path)
	if err != nil {
		return err
	}
	if err := validator.ValidateProgram(program, runtime.New()); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d statements, no errors\n", path, program.Len())
	return nil
}
