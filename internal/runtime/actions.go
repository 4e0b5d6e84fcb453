package runtime

import (
	"context"
	"math"
)

// colours offered by randomColour.
var colours = []string{
	"#000000",
	"#ff0000",
	"#00ff00",
	"#0000ff",
	"#ff00ff",
	"#ffff00",
	"#00ffff",
	"#ffffff",
}

func (e *Engine) say(ctx context.Context, st *State) (any, error) {
	text, err := e.textArg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Saying", "text", text)
	return nil, e.actuator.Say(ctx, text)
}

func (e *Engine) walk(ctx context.Context, st *State) (any, error) {
	forward, err := e.numberArg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	sideways, err := e.numberArg(ctx, st, 1)
	if err != nil {
		return nil, err
	}
	return nil, e.actuator.Walk(ctx, forward, sideways)
}

// turn clamps the angle to one full revolution either way.
func (e *Engine) turn(ctx context.Context, st *State) (any, error) {
	degrees, err := e.numberArg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	degrees = math.Max(-360, math.Min(360, degrees))
	return nil, e.actuator.Turn(ctx, degrees)
}

func (e *Engine) stop(ctx context.Context, st *State) (any, error) {
	return nil, e.actuator.Stop(ctx)
}

func (e *Engine) rest(ctx context.Context, st *State) (any, error) {
	return nil, e.actuator.Rest(ctx)
}

func (e *Engine) wait(ctx context.Context, st *State) (any, error) {
	seconds, err := e.numberArg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Waiting", "seconds", int(seconds))
	return nil, e.sleep(ctx, int(seconds))
}

func (e *Engine) changeLED(ctx context.Context, st *State) (any, error) {
	name, err := e.textArg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	colour, err := e.textArg(ctx, st, 1)
	if err != nil {
		return nil, err
	}
	return nil, e.actuator.SetIndicator(ctx, name, colour)
}

func (e *Engine) readSensor(ctx context.Context, st *State) (any, error) {
	name, err := e.textArg(ctx, st, 0)
	if err != nil {
		return nil, err
	}
	v, err := e.actuator.ReadSensor(ctx, name)
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func (e *Engine) randomColour(ctx context.Context, st *State) (any, error) {
	return colours[e.intn(len(colours))], nil
}

func (e *Engine) lastRecognisedWord(ctx context.Context, st *State) (any, error) {
	return e.LastWord(), nil
}

// gesture forwards the first n arguments to a named animation. When speech is a valid
// argument index and that argument is present, its text is spoken first.
func (e *Engine) gesture(name string, n, speech int) Handler {
	return func(ctx context.Context, st *State) (any, error) {
		args := make([]any, 0, n)
		for i := 0; i < n; i++ {
			v, err := e.arg(ctx, st, i)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		if speech >= 0 {
			v, ok, err := e.optionalArg(ctx, st, speech)
			if err != nil {
				return nil, err
			}
			if ok && v != nil && FormatValue(v) != "" {
				if err := e.actuator.Say(ctx, FormatValue(v)); err != nil {
					return nil, err
				}
			}
		}
		e.logger.Debug("Performing gesture", "gesture", name, "args", args)
		return nil, e.actuator.Gesture(ctx, name, args...)
	}
}

// normalize maps sensor readings onto the interpreter's value types.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

// nopActuator is used when no hardware is attached.
type nopActuator struct{}

func (nopActuator) Say(context.Context, string) error {
	return nil
}

func (nopActuator) Walk(context.Context, float64, float64) error {
	return nil
}

func (nopActuator) Turn(context.Context, float64) error {
	return nil
}

func (nopActuator) Stop(context.Context) error {
	return nil
}

func (nopActuator) Rest(context.Context) error {
	return nil
}

func (nopActuator) SetIndicator(context.Context, string, string) error {
	return nil
}

func (nopActuator) ReadSensor(context.Context, string) (any, error) {
	return nil, nil
}

func (nopActuator) Gesture(context.Context, string, ...any) error {
	return nil
}
