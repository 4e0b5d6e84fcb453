package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/internal/presentation/graph"
	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/pkg/adapters/memory"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
)

// ExecOptions contains the configuration for the exec command.
type ExecOptions struct {
	Path     string
	Delay    int
	Second   time.Duration
	Triggers []string
	Debug    bool
	Mermaid  bool
	Out      io.Writer
}

// loadProgram reads a program file in the JSON AST format.
func loadProgram(path string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	p, err := ast.DecodeProgram(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return p, nil
}

// Exec runs a program offline against the recording actuator, printing every
// robot action, state change and interpreter error. Listed triggers fire after the run.
func Exec(ctx context.Context, opts ExecOptions) error {
	program, err := loadProgram(opts.Path)
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	if opts.Debug {
		logger = logging.New(slog.LevelDebug)
	}
	out := opts.Out

	actuator := memory.NewActuator(memory.WithOnCall(func(_ context.Context, c memory.Call) error {
		fmt.Fprintf(out, "  robot: %s\n", c)
		return nil
	}))

	var (
		visitedMu sync.Mutex
		visited   []string
	)

	engineOpts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithActuator(actuator),
		runtime.WithHooks(domain.Hooks{
			OnFunctionStart: func(_ context.Context, e *domain.FunctionEvent) {
				if e.SourceID != "" {
					visitedMu.Lock()
					visited = append(visited, e.SourceID)
					visitedMu.Unlock()
				}
			},
			OnError: func(_ context.Context, e *domain.ErrorEvent) {
				fmt.Fprintf(out, "  error: %v\n", e.Err)
			},
			OnStateChange: func(_ context.Context, e *domain.StateChangeEvent) {
				fmt.Fprintf(out, "  state: %s = %s\n", e.Name, runtime.FormatValue(e.Value))
			},
		}),
	}
	if opts.Second > 0 {
		engineOpts = append(engineOpts, runtime.WithSecond(opts.Second))
	}
	engine := runtime.New(engineOpts...)
	engine.Configure(map[string]any{"delay": opts.Delay})

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	printSystemMessage(out, "Running %s (%d statements)", opts.Path, program.Len())
	if err := engine.Run(sigCtx, program); err != nil {
		return interrupted(sigCtx, out, err)
	}

	for _, name := range opts.Triggers {
		printSystemMessage(out, "Trigger %s", name)
		if err := engine.Trigger(sigCtx, name, nil); err != nil {
			if errors.Is(err, domain.ErrTriggerNotRegistered) {
				return err
			}
			return interrupted(sigCtx, out, err)
		}
	}

	printSystemMessage(out, "Finished: %d robot actions", len(actuator.Calls()))
	if opts.Mermaid {
		visitedMu.Lock()
		overlay := &graph.GraphOverlay{VisitedBlocks: visited}
		if len(visited) > 0 {
			overlay.CurrentBlock = visited[len(visited)-1]
		}
		visitedMu.Unlock()
		fmt.Fprint(out, graph.GenerateMermaid(program, graph.DefaultShapes, overlay))
	}
	return nil
}

func interrupted(sigCtx *SignalContext, out io.Writer, err error) error {
	if sig := sigCtx.Signal(); sig != nil {
		printSystemMessage(out, "Received %s, program stopped.", sig)
		return nil
	}
	return err
}
