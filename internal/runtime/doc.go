// Package runtime is the block program interpreter.
//
// An Engine walks an ast.Program against a fixed function table. Control flow (if, loop, while,
// custom functions) is implemented by handlers that decide whether to mark their State completed;
// a Compound node stops evaluating children as soon as its state is completed.
//
// Interpreter errors never abort a run. They are reported through domain.Hooks and execution
// continues with the next sibling. Only Cancel and context cancellation stop a run early, and
// they are honoured at iteration boundaries and inside waits, never in the middle of an action.
package runtime
