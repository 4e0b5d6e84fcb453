package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/botlink/internal/logging"
)

// Call is one recorded actuator invocation.
type Call struct {
	Action string
	Args   []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Action, c.Args)
}

// Actuator implements ports.Actuator by recording calls instead of moving hardware.
// Safe for concurrent use.
type Actuator struct {
	logger  *slog.Logger
	sensors map[string]any
	onCall  func(context.Context, Call) error

	mu    sync.Mutex
	calls []Call
}

// ActuatorOption configures an Actuator.
type ActuatorOption func(*Actuator)

// WithActuatorLogger logs every call at Info.
func WithActuatorLogger(logger *slog.Logger) ActuatorOption {
	return func(a *Actuator) {
		a.logger = logger
	}
}

// WithSensor scripts the value returned by ReadSensor for name.
func WithSensor(name string, value any) ActuatorOption {
	return func(a *Actuator) {
		a.sensors[name] = value
	}
}

// WithOnCall runs fn after each call is recorded; its error is returned to the caller.
// Tests use it to block inside an action or to inject failures.
func WithOnCall(fn func(context.Context, Call) error) ActuatorOption {
	return func(a *Actuator) {
		a.onCall = fn
	}
}

// NewActuator creates a recording actuator.
func NewActuator(opts ...ActuatorOption) *Actuator {
	a := &Actuator{
		logger:  logging.NewNop(),
		sensors: map[string]any{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Calls returns a copy of the recorded calls.
func (a *Actuator) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// Actions returns the recorded action names in order.
func (a *Actuator) Actions() []string {
	calls := a.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Action
	}
	return names
}

// Reset forgets the recorded calls.
func (a *Actuator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
}

func (a *Actuator) record(ctx context.Context, action string, args ...any) error {
	c := Call{Action: action, Args: args}
	a.mu.Lock()
	a.calls = append(a.calls, c)
	a.mu.Unlock()

	a.logger.Info("Robot action", "action", action, "args", args)
	if a.onCall != nil {
		return a.onCall(ctx, c)
	}
	return nil
}

func (a *Actuator) Say(ctx context.Context, text string) error {
	return a.record(ctx, "say", text)
}

func (a *Actuator) Walk(ctx context.Context, forward, sideways float64) error {
	return a.record(ctx, "walk", forward, sideways)
}

func (a *Actuator) Turn(ctx context.Context, degrees float64) error {
	return a.record(ctx, "turn", degrees)
}

func (a *Actuator) Stop(ctx context.Context) error {
	return a.record(ctx, "stop")
}

func (a *Actuator) Rest(ctx context.Context) error {
	return a.record(ctx, "rest")
}

func (a *Actuator) SetIndicator(ctx context.Context, name, colour string) error {
	return a.record(ctx, "indicator", name, colour)
}

func (a *Actuator) ReadSensor(ctx context.Context, name string) (any, error) {
	if err := a.record(ctx, "sensor", name); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.sensors[name]
	if !ok {
		return nil, fmt.Errorf("unknown sensor %s", name)
	}
	return v, nil
}

func (a *Actuator) Gesture(ctx context.Context, name string, args ...any) error {
	return a.record(ctx, name, args...)
}
