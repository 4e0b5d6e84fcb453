package domain

import (
	"context"
	"time"
)

// DebugStatus marks the edge of a function invocation.
type DebugStatus string

const (
	DebugStart DebugStatus = "start"
	DebugEnd   DebugStatus = "end"
)

// FunctionEvent is fired around every function invocation.
type FunctionEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	SourceID  string      `json:"source_id,omitempty"` // Empty when the node carries no source id
	Function  string      `json:"function"`
	Status    DebugStatus `json:"status"`
	TopLevel  bool        `json:"top_level"`
}

// ErrorEvent is fired for every recoverable interpreter error.
type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Function  string    `json:"function,omitempty"`
	Err       error     `json:"-"`
}

// Message is the text forwarded to the server.
func (e *ErrorEvent) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// StateChangeEvent is fired when a variable is written or a loop advances.
type StateChangeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Value     any       `json:"value"`
}

// Hooks defines callbacks for interpreter observability. Nil callbacks are skipped.
type Hooks struct {
	OnFunctionStart func(context.Context, *FunctionEvent)
	OnFunctionEnd   func(context.Context, *FunctionEvent)
	OnError         func(context.Context, *ErrorEvent)
	OnStateChange   func(context.Context, *StateChangeEvent)
}
