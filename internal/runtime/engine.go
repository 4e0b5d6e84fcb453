package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/ports"
)

// TriggerValueVariable is the variable a trigger payload is written to before the trigger runs.
const TriggerValueVariable = "triggerValue"

// Engine interprets programs. It is not safe to call Run or Trigger concurrently;
// Cancel, Cancelled and the read accessors are safe from any goroutine.
type Engine struct {
	logger   *slog.Logger
	actuator ports.Actuator
	second   time.Duration
	intn     func(n int) int
	extra    map[string]Function

	observersMu sync.RWMutex
	observers   []domain.Hooks

	mu        sync.RWMutex
	functions map[string]Function
	variables map[string]any
	triggers  map[string]*ast.Node
	lastWord  string
	settings  Settings

	cancelMu  sync.Mutex
	cancelled bool
	cancelCh  chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithActuator sets the hardware the robot functions drive.
func WithActuator(a ports.Actuator) Option {
	return func(e *Engine) {
		e.actuator = a
	}
}

// WithSecond overrides the length of one second used by wait and the run delay.
func WithSecond(d time.Duration) Option {
	return func(e *Engine) {
		e.second = d
	}
}

// WithRandom overrides the source used by randomColour. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(e *Engine) {
		e.intn = intn
	}
}

// WithHooks attaches an observer.
func WithHooks(h domain.Hooks) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, h)
	}
}

// WithFunction adds a function to the table. It survives resets.
func WithFunction(name string, fn Function) Option {
	return func(e *Engine) {
		e.extra[name] = fn
	}
}

// New creates an engine with a freshly reset function table.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   logging.NewNop(),
		actuator: nopActuator{},
		second:   time.Second,
		intn:     rand.Intn,
		extra:    map[string]Function{},
		cancelCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	e.Reset()
	return e
}

// Observe attaches another set of hooks.
func (e *Engine) Observe(h domain.Hooks) {
	e.observersMu.Lock()
	defer e.observersMu.Unlock()
	e.observers = append(e.observers, h)
}

// Reset rebuilds the function table and clears variables and registered triggers.
func (e *Engine) Reset() {
	table := e.builtins()
	for name, fn := range e.extra {
		table[name] = fn
	}

	e.mu.Lock()
	e.functions = table
	e.variables = map[string]any{}
	e.triggers = map[string]*ast.Node{}
	e.mu.Unlock()
	e.logger.Debug("Engine reset", "functions", len(table))
}

// Configure applies run options and clears a previous cancellation.
func (e *Engine) Configure(opts map[string]any) Settings {
	s := ParseSettings(opts)
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.ClearCancel()
	e.logger.Debug("Engine configured", "debug", s.Debug, "delay", s.Delay)
	return s
}

// Settings returns the active run options.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// Run executes a program's top-level statements in order.
// It returns only context errors; interpreter errors are reported through the hooks.
func (e *Engine) Run(ctx context.Context, program *ast.Program) error {
	if program == nil {
		return nil
	}
	e.logger.Info("Running program", "statements", program.Len())
	e.execute(ctx, program.Nodes, nil, true)
	return ctx.Err()
}

// Trigger runs the block registered under name. value, when non-nil, is stored in
// TriggerValueVariable first; for the "word" trigger it also becomes the last recognised word.
func (e *Engine) Trigger(ctx context.Context, name string, value any) error {
	e.mu.Lock()
	block, ok := e.triggers[name]
	if ok && value != nil {
		e.variables[TriggerValueVariable] = value
	}
	if name == TriggerWord && value != nil {
		e.lastWord = FormatValue(value)
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTriggerNotRegistered, name)
	}

	e.logger.Info("Executing trigger", "trigger", name)
	e.execute(ctx, block.Children, nil, false)
	return ctx.Err()
}

// Cancel asks the current run to stop at the next iteration boundary.
func (e *Engine) Cancel() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if !e.cancelled {
		e.cancelled = true
		close(e.cancelCh)
		e.logger.Info("Execution cancelled")
	}
}

// Cancelled reports whether Cancel was called since the last ClearCancel.
func (e *Engine) Cancelled() bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return e.cancelled
}

// ClearCancel rearms the engine after a cancellation.
func (e *Engine) ClearCancel() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancelled {
		e.cancelled = false
		e.cancelCh = make(chan struct{})
	}
}

func (e *Engine) cancelChan() <-chan struct{} {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return e.cancelCh
}

func (e *Engine) stopped(ctx context.Context) bool {
	return e.Cancelled() || ctx.Err() != nil
}

// sleep waits for n engine seconds, returning early on cancellation.
func (e *Engine) sleep(ctx context.Context, n int) error {
	done := e.cancelChan()
	for i := 0; i < n; i++ {
		if e.stopped(ctx) {
			return domain.ErrCancelled
		}
		timer := time.NewTimer(e.second)
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
			return domain.ErrCancelled
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Variable returns the value of a variable.
func (e *Engine) Variable(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.variables[name]
	return v, ok
}

// Variables returns a copy of the variable store.
func (e *Engine) Variables() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.variables))
	for k, v := range e.variables {
		out[k] = v
	}
	return out
}

// Triggers lists the registered trigger names in sorted order.
func (e *Engine) Triggers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.triggers))
	for name := range e.triggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasFunction reports whether name is in the function table.
func (e *Engine) HasFunction(name string) bool {
	_, ok := e.lookup(name)
	return ok
}

// TopLevelOnly reports whether name may only be called from the top level of a program.
func (e *Engine) TopLevelOnly(name string) bool {
	fn, ok := e.lookup(name)
	return ok && fn.TopLevel
}

// LastWord returns the last recognised word.
func (e *Engine) LastWord() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastWord
}

func (e *Engine) lookup(name string) (Function, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.functions[name]
	return fn, ok
}
