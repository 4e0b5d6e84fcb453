package domain

import "errors"

// Interpreter errors. They are reported through Hooks.OnError and never abort a run.
var (
	// ErrUnknownFunction is returned when a program calls a name missing from the function table.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrFunctionNotAllowedHere is returned when a top-level only function is called inside a block.
	ErrFunctionNotAllowedHere = errors.New("function cannot be executed here")

	// ErrUnknownVariable is returned when reading or updating a variable that was never set.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrDuplicateFunction is returned when a program redefines an existing function.
	ErrDuplicateFunction = errors.New("function already exists")

	// ErrUnknownNodeType is returned for nodes that are neither functions nor compounds.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownExpression is returned when an argument cannot be evaluated.
	ErrUnknownExpression = errors.New("unknown expression")

	// ErrMissingArgument is returned when a function is called with too few arguments.
	ErrMissingArgument = errors.New("missing argument")

	// ErrInvalidValue is returned when a value has the wrong type for an operation.
	ErrInvalidValue = errors.New("invalid value")

	// ErrTriggerNotRegistered is returned when triggering a block nobody registered.
	ErrTriggerNotRegistered = errors.New("trigger not registered")

	// ErrCancelled is returned by waits interrupted by a cancellation.
	ErrCancelled = errors.New("execution cancelled")
)

// Session errors.
var (
	// ErrProgramRunning is returned when an operation needs the robot idle.
	ErrProgramRunning = errors.New("a program is already running")

	// ErrNoProgram is returned when starting before any program was downloaded.
	ErrNoProgram = errors.New("no program has been downloaded")

	// ErrNotConnected is returned when sending without an open connection.
	ErrNotConnected = errors.New("not connected")

	// ErrNoServer is returned when none of the configured addresses answered.
	ErrNoServer = errors.New("unable to find a server")

	// ErrAuthenticationRejected is returned when the server refuses the robot's credentials.
	ErrAuthenticationRejected = errors.New("authentication rejected")

	// ErrReconnectExhausted is returned when the reconnect budget is spent.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("client closed")
)

// ErrProgramNotFound is returned when a store holds no program for a robot.
var ErrProgramNotFound = errors.New("program not found")
