package ports

import "context"

// Actuator is the hardware boundary. Calls are synchronous: they return once the action is done.
type Actuator interface {
	// Say speaks the text.
	Say(ctx context.Context, text string) error

	// Walk moves forward and sideways for the given number of seconds each.
	// Negative values walk backwards or to the left.
	Walk(ctx context.Context, forward, sideways float64) error

	// Turn rotates by degrees (positive is clockwise).
	Turn(ctx context.Context, degrees float64) error

	// Stop halts any motion.
	Stop(ctx context.Context) error

	// Rest puts the robot in its resting posture.
	Rest(ctx context.Context) error

	// SetIndicator sets a named light to a "#RRGGBB" colour.
	SetIndicator(ctx context.Context, name, colour string) error

	// ReadSensor returns the current value of a named sensor.
	ReadSensor(ctx context.Context, name string) (any, error)

	// Gesture performs a named animation (wave, dance, point, ...).
	Gesture(ctx context.Context, name string, args ...any) error
}
