package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/pkg/adapters/memory"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_RegisterAndGo(t *testing.T) {
	e, act, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("start").Do(dsl.Call("say", dsl.Text("started"))),
		dsl.Call("go"),
	)
	require.NoError(t, e.Run(context.Background(), p))

	assert.Equal(t, []memory.Call{{Action: "say", Args: []any{"started"}}}, act.Calls())
	assert.Empty(t, rec.errors())
}

func TestTrigger_GoWithoutStartIsSkipped(t *testing.T) {
	e, act, rec := newEngine(t)

	require.NoError(t, e.Run(context.Background(), dsl.Program(dsl.Call("go"))))
	assert.Empty(t, act.Calls())
	assert.Empty(t, rec.errors())
}

func TestTrigger_ExternalEvents(t *testing.T) {
	e, act, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("chestButton").Do(dsl.Call("wave")),
		dsl.Call("wordRecognised").Do(
			dsl.Call("say", dsl.Expr("lastRecognisedWord")),
			dsl.Call("say", dsl.Var(runtime.TriggerValueVariable)),
		),
	)
	require.NoError(t, e.Run(context.Background(), p))
	assert.Empty(t, act.Calls(), "registering does not run the block")
	assert.Equal(t, []string{"chest", "word"}, e.Triggers())

	require.NoError(t, e.Trigger(context.Background(), runtime.TriggerChest, nil))
	require.NoError(t, e.Trigger(context.Background(), runtime.TriggerWord, "hello"))

	assert.Equal(t, []memory.Call{
		{Action: "wave"},
		{Action: "say", Args: []any{"hello"}},
		{Action: "say", Args: []any{"hello"}},
	}, act.Calls())
	assert.Equal(t, "hello", e.LastWord())
	assert.Empty(t, rec.errors())
}

func TestTrigger_NotRegistered(t *testing.T) {
	e, _, _ := newEngine(t)

	err := e.Trigger(context.Background(), runtime.TriggerFront, nil)
	assert.ErrorIs(t, err, domain.ErrTriggerNotRegistered)
}

func TestTrigger_BodyIsNotTopLevel(t *testing.T) {
	e, act, rec := newEngine(t)

	p := dsl.Program(
		dsl.Call("rearButton").Do(
			dsl.Call("reset"),
			dsl.Call("rest"),
		),
	)
	require.NoError(t, e.Run(context.Background(), p))
	require.NoError(t, e.Trigger(context.Background(), runtime.TriggerRear, nil))

	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrFunctionNotAllowedHere)
	assert.Equal(t, []string{"rest"}, act.Actions())
}
