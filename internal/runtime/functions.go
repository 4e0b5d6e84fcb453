package runtime

import (
	"context"
	"fmt"
	"math"

	"github.com/aretw0/botlink/pkg/domain"
)

// Handler executes one function invocation against its frame.
type Handler func(ctx context.Context, st *State) (any, error)

// Function is an entry of the function table.
type Function struct {
	Handler  Handler
	TopLevel bool // only callable from the top level of a program
}

// Trigger names used by the registration functions.
const (
	TriggerStart  = "start"
	TriggerFront  = "front"
	TriggerMiddle = "middle"
	TriggerRear   = "rear"
	TriggerChest  = "chest"
	TriggerWord   = "word"
)

// builtins returns a new function table.
func (e *Engine) builtins() map[string]Function {
	return map[string]Function{
		// Top level
		"reset":          {Handler: e.reset, TopLevel: true},
		"start":          {Handler: e.register(TriggerStart), TopLevel: true},
		"frontButton":    {Handler: e.register(TriggerFront), TopLevel: true},
		"middleButton":   {Handler: e.register(TriggerMiddle), TopLevel: true},
		"rearButton":     {Handler: e.register(TriggerRear), TopLevel: true},
		"chestButton":    {Handler: e.register(TriggerChest), TopLevel: true},
		"wordRecognised": {Handler: e.register(TriggerWord), TopLevel: true},
		"go":             {Handler: e.runBlock(TriggerStart), TopLevel: true},

		// Robot
		"say":                {Handler: e.say},
		"walk":               {Handler: e.walk},
		"turn":               {Handler: e.turn},
		"stop":               {Handler: e.stop},
		"rest":               {Handler: e.rest},
		"wait":               {Handler: e.wait},
		"changeLEDColour":    {Handler: e.changeLED},
		"readSensor":         {Handler: e.readSensor},
		"randomColour":       {Handler: e.randomColour},
		"lastRecognisedWord": {Handler: e.lastRecognisedWord},
		"wave":               {Handler: e.gesture("wave", 0, 0)},
		"wipe_forehead":      {Handler: e.gesture("wipe_forehead", 0, 0)},
		"look":               {Handler: e.gesture("look", 1, 1)},
		"point":              {Handler: e.gesture("point", 2, 2)},
		"dance":              {Handler: e.gesture("dance", 2, -1)},
		"position":           {Handler: e.gesture("position", 1, 1)},
		"changeHand":         {Handler: e.gesture("changeHand", 2, -1)},

		// Programming
		"loop":             {Handler: e.loop},
		"while":            {Handler: e.while},
		"if":               {Handler: e.ifBlock},
		"elseif":           {Handler: e.ifBlock},
		"else":             {Handler: e.elseBlock},
		"variable":         {Handler: e.defineVariable},
		"addTo":            {Handler: e.addTo},
		"function":         {Handler: e.defineFunction},
		"not":              {Handler: e.not},
		"round":            {Handler: e.round},
		"equal":            {Handler: e.equality(true)},
		"notEqual":         {Handler: e.equality(false)},
		"lessThan":         {Handler: e.ordering(func(c int) bool { return c < 0 })},
		"greaterThan":      {Handler: e.ordering(func(c int) bool { return c > 0 })},
		"lessThanEqual":    {Handler: e.ordering(func(c int) bool { return c <= 0 })},
		"greaterThanEqual": {Handler: e.ordering(func(c int) bool { return c >= 0 })},
	}
}

func (e *Engine) reset(ctx context.Context, st *State) (any, error) {
	e.Reset()
	return nil, nil
}

// register stores the calling node so its children can run later as a trigger.
func (e *Engine) register(trigger string) Handler {
	return func(ctx context.Context, st *State) (any, error) {
		e.mu.Lock()
		e.triggers[trigger] = st.Node
		e.mu.Unlock()
		e.logger.Debug("Registered trigger", "trigger", trigger)
		return nil, nil
	}
}

// runBlock executes a registered block; nothing happens when it was never registered.
func (e *Engine) runBlock(trigger string) Handler {
	return func(ctx context.Context, st *State) (any, error) {
		e.mu.RLock()
		block, ok := e.triggers[trigger]
		e.mu.RUnlock()
		if !ok {
			e.logger.Debug("Trigger not registered, skipping", "trigger", trigger)
			return nil, nil
		}
		e.execute(ctx, block.Children, nil, false)
		return nil, nil
	}
}

func (e *Engine) loop(ctx context.Context, st *State) (any, error) {
	count, err := e.numberArg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	iterations := int(count)
	for i := 0; i < iterations; i++ {
		if e.stopped(ctx) {
			break
		}
		e.changeState(ctx, "loop", float64(i))
		e.execute(ctx, st.Node.Children, st, false)
	}
	return nil, nil
}

func (e *Engine) condition(ctx context.Context, st *State) (bool, error) {
	v, err := e.arg(ctx, st, 0)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

func (e *Engine) while(ctx context.Context, st *State) (any, error) {
	ok, err := e.condition(ctx, st)
	for err == nil && ok {
		st.Complete()
		e.execute(ctx, st.Node.Children, st, false)
		if e.stopped(ctx) {
			return nil, nil
		}
		ok, err = e.condition(ctx, st)
	}
	return nil, err
}

func (e *Engine) ifBlock(ctx context.Context, st *State) (any, error) {
	ok, err := e.condition(ctx, st)
	if err != nil || !ok {
		return nil, err
	}
	st.Complete()
	e.execute(ctx, st.Node.Children, st, false)
	return nil, nil
}

func (e *Engine) elseBlock(ctx context.Context, st *State) (any, error) {
	e.execute(ctx, st.Node.Children, st, false)
	return nil, nil
}

func (e *Engine) defineVariable(ctx context.Context, st *State) (any, error) {
	name, err := literal(st, 0)
	if err != nil {
		return nil, err
	}
	value, err := e.arg(ctx, st, 1)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.variables[name] = value
	e.mu.Unlock()
	e.changeState(ctx, name, value)
	return nil, nil
}

func (e *Engine) addTo(ctx context.Context, st *State) (any, error) {
	name, err := literal(st, 0)
	if err != nil {
		return nil, err
	}
	delta, err := e.arg(ctx, st, 1)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	current, ok := e.variables[name]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, name)
	}
	next, err := add(current, delta)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.variables[name] = next
	e.mu.Unlock()

	e.changeState(ctx, name, next)
	return nil, nil
}

// defineFunction adds a custom function whose body is the node's children.
// Existing names, built in or custom, cannot be replaced.
func (e *Engine) defineFunction(ctx context.Context, st *State) (any, error) {
	name, err := literal(st, 0)
	if err != nil {
		return nil, err
	}
	body := st.Node.Children

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.functions[name]; exists {
		return nil, fmt.Errorf("%w: %s cannot be redefined", domain.ErrDuplicateFunction, name)
	}
	e.functions[name] = Function{Handler: func(ctx context.Context, st *State) (any, error) {
		e.logger.Debug("Executing custom function", "function", name)
		return e.execute(ctx, body, st, false), nil
	}}
	e.logger.Debug("Defined function", "function", name)
	return nil, nil
}

func (e *Engine) not(ctx context.Context, st *State) (any, error) {
	v, err := e.arg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

// round rounds half to even.
func (e *Engine) round(ctx context.Context, st *State) (any, error) {
	v, err := e.arg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: cannot round %s", domain.ErrInvalidValue, FormatValue(v))
	}
	return math.RoundToEven(f), nil
}

func (e *Engine) operands(ctx context.Context, st *State) (any, any, error) {
	a, err := e.arg(ctx, st, 0)
	if err != nil {
		return nil, nil, err
	}
	b, err := e.arg(ctx, st, 1)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (e *Engine) equality(want bool) Handler {
	return func(ctx context.Context, st *State) (any, error) {
		a, b, err := e.operands(ctx, st)
		if err != nil {
			return nil, err
		}
		return equal(a, b) == want, nil
	}
}

func (e *Engine) ordering(test func(int) bool) Handler {
	return func(ctx context.Context, st *State) (any, error) {
		a, b, err := e.operands(ctx, st)
		if err != nil {
			return nil, err
		}
		c, err := compare(a, b)
		if err != nil {
			return nil, err
		}
		return test(c), nil
	}
}
