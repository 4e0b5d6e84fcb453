package ports

import (
	"context"

	"github.com/aretw0/botlink/pkg/ast"
)

// ProgramStore persists the last successfully prepared program of a robot.
type ProgramStore interface {
	// Save persists the program for a robot, replacing any previous one.
	Save(ctx context.Context, robot string, program *ast.Program) error

	// Load retrieves the program for a robot.
	// Returns domain.ErrProgramNotFound if nothing was saved.
	Load(ctx context.Context, robot string) (*ast.Program, error)

	// Delete removes the program for a robot.
	Delete(ctx context.Context, robot string) error
}
