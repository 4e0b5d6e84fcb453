package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/pkg/adapters/memory"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects every hook event.
type recorder struct {
	mu      sync.Mutex
	starts  []*domain.FunctionEvent
	ends    []*domain.FunctionEvent
	errs    []error
	changes []*domain.StateChangeEvent
}

func (r *recorder) hooks() domain.Hooks {
	return domain.Hooks{
		OnFunctionStart: func(_ context.Context, e *domain.FunctionEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.starts = append(r.starts, e)
		},
		OnFunctionEnd: func(_ context.Context, e *domain.FunctionEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ends = append(r.ends, e)
		},
		OnError: func(_ context.Context, e *domain.ErrorEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, e.Err)
		},
		OnStateChange: func(_ context.Context, e *domain.StateChangeEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.changes = append(r.changes, e)
		},
	}
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) started(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.starts {
		if e.Function == name {
			n++
		}
	}
	return n
}

func newEngine(t *testing.T, opts ...runtime.Option) (*runtime.Engine, *memory.Actuator, *recorder) {
	t.Helper()
	act := memory.NewActuator()
	rec := &recorder{}
	opts = append([]runtime.Option{
		runtime.WithActuator(act),
		runtime.WithHooks(rec.hooks()),
		runtime.WithSecond(time.Millisecond),
	}, opts...)
	return runtime.New(opts...), act, rec
}

func TestEngine_PrimitivesRunInOrder(t *testing.T) {
	e, act, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("say", dsl.Text("one")),
		dsl.Call("wave"),
		dsl.Call("turn", dsl.Number(90)),
		dsl.Call("rest"),
	)
	require.NoError(t, e.Run(context.Background(), p))

	assert.Equal(t, []string{"say", "wave", "turn", "rest"}, act.Actions())
	assert.Empty(t, rec.errors())
}

func TestEngine_VariableScenario(t *testing.T) {
	e, act, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("variable", dsl.Text("x"), dsl.Number(5)),
		dsl.Call("addTo", dsl.Text("x"), dsl.Number(3)),
		dsl.Call("if", dsl.Expr("equal", dsl.Var("x"), dsl.Number(8))).Do(
			dsl.Call("say", dsl.Text("yes")),
		),
	)
	require.NoError(t, e.Run(context.Background(), p))

	x, ok := e.Variable("x")
	require.True(t, ok)
	assert.Equal(t, 8.0, x)
	assert.Equal(t, []memory.Call{{Action: "say", Args: []any{"yes"}}}, act.Calls())
	assert.Empty(t, rec.errors())

	require.Len(t, rec.changes, 2)
	assert.Equal(t, "x", rec.changes[1].Name)
	assert.Equal(t, 8.0, rec.changes[1].Value)
}

func TestEngine_LoopCancelledAfterIteration(t *testing.T) {
	const k = 2
	var e *runtime.Engine
	says := 0
	act := memory.NewActuator(memory.WithOnCall(func(ctx context.Context, c memory.Call) error {
		if c.Action == "say" {
			says++
			if says == k {
				e.Cancel()
			}
		}
		return nil
	}))
	rec := &recorder{}
	e = runtime.New(runtime.WithActuator(act), runtime.WithHooks(rec.hooks()))

	p := dsl.Program(
		dsl.Call("loop", dsl.Number(5)).Do(dsl.Call("say", dsl.Text("tick"))),
		dsl.Call("say", dsl.Text("after")),
	)
	require.NoError(t, e.Run(context.Background(), p))

	assert.Equal(t, k, says)
	assert.True(t, e.Cancelled())
	require.Len(t, rec.changes, k)
	for i, c := range rec.changes {
		assert.Equal(t, "loop", c.Name)
		assert.Equal(t, float64(i), c.Value)
	}
}

func TestEngine_WhileChecksConditionOnceMore(t *testing.T) {
	e, act, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("variable", dsl.Text("i"), dsl.Number(0)),
		dsl.Call("while", dsl.Expr("lessThan", dsl.Var("i"), dsl.Number(3))).Do(
			dsl.Call("say", dsl.Var("i")),
			dsl.Call("addTo", dsl.Text("i"), dsl.Number(1)),
		),
	)
	require.NoError(t, e.Run(context.Background(), p))

	assert.Equal(t, 4, rec.started("lessThan"))
	assert.Equal(t, []string{"say", "say", "say"}, act.Actions())
	assert.Equal(t, []any{"0"}, act.Calls()[0].Args)
	assert.Equal(t, []any{"2"}, act.Calls()[2].Args)
}

func TestEngine_IfChain(t *testing.T) {
	chain := func(first, second bool) *ast.Program {
		return dsl.Program(
			dsl.Compound("if").Do(
				dsl.Call("if", dsl.Bool(first)).Do(dsl.Call("say", dsl.Text("if"))),
				dsl.Call("elseif", dsl.Bool(second)).Do(dsl.Call("say", dsl.Text("elseif"))),
				dsl.Call("else").Do(dsl.Call("say", dsl.Text("else"))),
			),
		)
	}

	tests := []struct {
		name          string
		first, second bool
		want          string
	}{
		{"IfTrue", true, true, "if"},
		{"ElseIfTrue", false, true, "elseif"},
		{"Else", false, false, "else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, act, _ := newEngine(t)
			require.NoError(t, e.Run(context.Background(), chain(tt.first, tt.second)))
			assert.Equal(t, []memory.Call{{Action: "say", Args: []any{tt.want}}}, act.Calls())
		})
	}
}

func TestEngine_AddToUnknownVariable(t *testing.T) {
	e, _, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("variable", dsl.Text("a"), dsl.Number(1)),
		dsl.Call("addTo", dsl.Text("missing"), dsl.Number(3)),
	)
	require.NoError(t, e.Run(context.Background(), p))

	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrUnknownVariable)
	assert.Equal(t, map[string]any{"a": 1.0}, e.Variables())
}

func TestEngine_DuplicateFunction(t *testing.T) {
	e, act, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("function", dsl.Text("greet")).Do(dsl.Call("say", dsl.Text("hi"))),
		dsl.Call("function", dsl.Text("greet")).Do(dsl.Call("say", dsl.Text("bye"))),
		dsl.Call("function", dsl.Text("say")).Do(dsl.Call("wave")),
		dsl.Call("greet"),
		dsl.Call("say", dsl.Text("plain")),
	)
	require.NoError(t, e.Run(context.Background(), p))

	errs := rec.errors()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], domain.ErrDuplicateFunction)
	assert.ErrorIs(t, errs[1], domain.ErrDuplicateFunction)
	assert.Equal(t, []memory.Call{
		{Action: "say", Args: []any{"hi"}},
		{Action: "say", Args: []any{"plain"}},
	}, act.Calls())
}

func TestEngine_RecoverableErrors(t *testing.T) {
	e, act, rec := newEngine(t)

	p := &ast.Program{Nodes: []*ast.Node{
		dsl.Call("fly").Node(),
		dsl.Call("loop", dsl.Number(1)).Do(dsl.Call("reset")).Node(),
		{Kind: ast.NodeInvalid, Token: ast.Token{Value: "odd"}},
		dsl.Call("say", &ast.Node{Kind: ast.NodeConstant, Token: ast.Token{Kind: ast.TokenIllegal, Value: "?"}}).Node(),
		dsl.Call("say", dsl.Var("ghost")).Node(),
		dsl.Call("say").Node(),
		dsl.Call("say", dsl.Text("still running")).Node(),
	}}
	require.NoError(t, e.Run(context.Background(), p))

	errs := rec.errors()
	require.Len(t, errs, 6)
	assert.ErrorIs(t, errs[0], domain.ErrUnknownFunction)
	assert.ErrorIs(t, errs[1], domain.ErrFunctionNotAllowedHere)
	assert.ErrorIs(t, errs[2], domain.ErrUnknownNodeType)
	assert.ErrorIs(t, errs[3], domain.ErrUnknownExpression)
	assert.ErrorIs(t, errs[4], domain.ErrUnknownVariable)
	assert.ErrorIs(t, errs[5], domain.ErrMissingArgument)
	assert.Equal(t, []string{"say"}, act.Actions())
}

func TestEngine_DebugEvents(t *testing.T) {
	e, _, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("loop", dsl.Number(1)).ID("outer").Do(
			dsl.Call("wave").ID("inner"),
		),
	)
	require.NoError(t, e.Run(context.Background(), p))

	require.Len(t, rec.starts, 2)
	require.Len(t, rec.ends, 2)
	assert.Equal(t, "outer", rec.starts[0].SourceID)
	assert.True(t, rec.starts[0].TopLevel)
	assert.Equal(t, "inner", rec.starts[1].SourceID)
	assert.False(t, rec.starts[1].TopLevel)
	assert.Equal(t, "inner", rec.ends[0].SourceID)
	assert.Equal(t, "outer", rec.ends[1].SourceID)
	assert.Equal(t, domain.DebugEnd, rec.ends[0].Status)
}

func TestEngine_WaitIsCancellable(t *testing.T) {
	var e *runtime.Engine
	e = runtime.New(
		runtime.WithSecond(time.Hour),
		runtime.WithHooks(domain.Hooks{
			OnFunctionStart: func(_ context.Context, evt *domain.FunctionEvent) {
				if evt.Function == "wait" {
					go func() {
						time.Sleep(10 * time.Millisecond)
						e.Cancel()
					}()
				}
			},
		}),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(context.Background(), dsl.Program(dsl.Call("wait", dsl.Number(100))))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("wait was not interrupted by Cancel")
	}
	assert.True(t, e.Cancelled())

	e.Configure(nil)
	assert.False(t, e.Cancelled(), "Configure clears the cancellation")
}

func TestEngine_ContextCancellation(t *testing.T) {
	e := runtime.New(runtime.WithSecond(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx, dsl.Program(dsl.Call("wait", dsl.Number(1))))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_DelayAppliesToNestedCalls(t *testing.T) {
	e, act, _ := newEngine(t, runtime.WithSecond(20*time.Millisecond))
	e.Configure(map[string]any{"delay": 1})

	start := time.Now()
	p := dsl.Program(
		dsl.Call("wave"),
		dsl.Call("loop", dsl.Number(2)).Do(dsl.Call("wave")),
	)
	require.NoError(t, e.Run(context.Background(), p))

	assert.Len(t, act.Calls(), 3)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestEngine_ResetClearsState(t *testing.T) {
	e, _, _ := newEngine(t)

	p := dsl.Program(
		dsl.Call("variable", dsl.Text("x"), dsl.Number(1)),
		dsl.Call("function", dsl.Text("custom")),
		dsl.Call("start").Do(dsl.Call("wave")),
	)
	require.NoError(t, e.Run(context.Background(), p))
	assert.True(t, e.HasFunction("custom"))
	assert.Equal(t, []string{"start"}, e.Triggers())

	require.NoError(t, e.Run(context.Background(), dsl.Program(dsl.Call("reset"))))
	assert.False(t, e.HasFunction("custom"))
	assert.Empty(t, e.Triggers())
	assert.Empty(t, e.Variables())
}

func TestEngine_WithFunctionSurvivesReset(t *testing.T) {
	called := 0
	e := runtime.New(runtime.WithFunction("beep", runtime.Function{
		Handler: func(ctx context.Context, st *runtime.State) (any, error) {
			called++
			return nil, nil
		},
	}))
	e.Reset()

	require.NoError(t, e.Run(context.Background(), dsl.Program(dsl.Call("beep"))))
	assert.Equal(t, 1, called)
}
