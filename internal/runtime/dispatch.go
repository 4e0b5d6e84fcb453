package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
)

// execute runs a statement list and returns the value of the last statement.
func (e *Engine) execute(ctx context.Context, nodes []*ast.Node, parent *State, topLevel bool) any {
	var last any
	for _, node := range nodes {
		if e.stopped(ctx) {
			break
		}
		switch node.Kind {
		case ast.NodeFunction:
			last = e.call(ctx, node, parent, topLevel)
		case ast.NodeCompound:
			last = e.compound(ctx, node, parent)
		default:
			e.report(ctx, node.Name(), fmt.Errorf("%w: %s", domain.ErrUnknownNodeType, node.Kind))
		}
	}
	return last
}

// compound runs children against one shared frame until a child completes it.
func (e *Engine) compound(ctx context.Context, node *ast.Node, parent *State) any {
	st := newState(node, parent, node.Name())
	var last any
	for _, child := range node.Children {
		if e.stopped(ctx) {
			break
		}
		last = e.call(ctx, child, st, false)
		if st.Completed() {
			break
		}
	}
	return last
}

// call invokes one function node. Errors are reported here, exactly once, and the
// result is then undefined (nil).
func (e *Engine) call(ctx context.Context, node *ast.Node, parent *State, topLevel bool) any {
	name := node.Name()
	fn, ok := e.lookup(name)
	if !ok {
		e.report(ctx, name, fmt.Errorf("%w: %s", domain.ErrUnknownFunction, name))
		return nil
	}
	if fn.TopLevel && !topLevel {
		e.report(ctx, name, fmt.Errorf("%w: %s", domain.ErrFunctionNotAllowedHere, name))
		return nil
	}

	e.logger.Debug("Executing function", "function", name, "source_id", node.SourceID)
	e.emitFunction(ctx, node, domain.DebugStart, topLevel)

	st := newState(node, parent, name)
	result, err := fn.Handler(ctx, st)
	if err != nil {
		result = nil
		if !isStop(err) {
			e.report(ctx, name, err)
		}
	}
	if parent != nil && st.Completed() {
		parent.Complete()
	}
	if !topLevel {
		e.pause(ctx)
	}

	e.emitFunction(ctx, node, domain.DebugEnd, topLevel)
	return result
}

// pause applies the configured delay after a nested call.
func (e *Engine) pause(ctx context.Context) {
	delay := e.Settings().Delay
	if delay <= 0 {
		return
	}
	e.logger.Debug("Delaying", "seconds", delay)
	_ = e.sleep(ctx, delay)
}

func isStop(err error) bool {
	return errors.Is(err, domain.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) hooks() []domain.Hooks {
	e.observersMu.RLock()
	defer e.observersMu.RUnlock()
	return e.observers
}

func (e *Engine) report(ctx context.Context, function string, err error) {
	e.logger.Warn("Execution error", "function", function, "error", err)
	evt := &domain.ErrorEvent{Timestamp: time.Now(), Function: function, Err: err}
	for _, h := range e.hooks() {
		if h.OnError != nil {
			h.OnError(ctx, evt)
		}
	}
}

func (e *Engine) emitFunction(ctx context.Context, node *ast.Node, status domain.DebugStatus, topLevel bool) {
	evt := &domain.FunctionEvent{
		Timestamp: time.Now(),
		SourceID:  node.SourceID,
		Function:  node.Name(),
		Status:    status,
		TopLevel:  topLevel,
	}
	for _, h := range e.hooks() {
		switch {
		case status == domain.DebugStart && h.OnFunctionStart != nil:
			h.OnFunctionStart(ctx, evt)
		case status == domain.DebugEnd && h.OnFunctionEnd != nil:
			h.OnFunctionEnd(ctx, evt)
		}
	}
}

func (e *Engine) changeState(ctx context.Context, name string, value any) {
	e.logger.Debug("State changed", "name", name, "value", value)
	evt := &domain.StateChangeEvent{Timestamp: time.Now(), Name: name, Value: value}
	for _, h := range e.hooks() {
		if h.OnStateChange != nil {
			h.OnStateChange(ctx, evt)
		}
	}
}
