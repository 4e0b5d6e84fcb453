package runtime

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
)

// evaluate turns an argument node into a value: string, float64, bool or nil.
func (e *Engine) evaluate(ctx context.Context, node *ast.Node, st *State) (any, error) {
	switch node.Token.Kind {
	case ast.TokenText, ast.TokenConstant:
		return node.Token.Value, nil
	case ast.TokenNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(node.Token.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidValue, node.Token.Value)
		}
		return f, nil
	case ast.TokenBoolean:
		return strings.EqualFold(node.Token.Value, "TRUE"), nil
	case ast.TokenIdentifier:
		return e.call(ctx, node, st, false), nil
	case ast.TokenVariable:
		e.mu.RLock()
		v, ok := e.variables[node.Token.Value]
		e.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, node.Token.Value)
		}
		return v, nil
	case ast.TokenColour:
		return "#" + strings.TrimPrefix(node.Token.Value, "#"), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownExpression, node.Token.Kind)
}

// arg evaluates the i-th argument of the current call.
func (e *Engine) arg(ctx context.Context, st *State, i int) (any, error) {
	if i >= len(st.Node.Arguments) {
		return nil, fmt.Errorf("%w: %s needs argument %d", domain.ErrMissingArgument, st.Label, i+1)
	}
	return e.evaluate(ctx, st.Node.Arguments[i], st)
}

// optionalArg evaluates the i-th argument when present.
func (e *Engine) optionalArg(ctx context.Context, st *State, i int) (any, bool, error) {
	if i >= len(st.Node.Arguments) {
		return nil, false, nil
	}
	v, err := e.evaluate(ctx, st.Node.Arguments[i], st)
	return v, true, err
}

// literal returns the raw token of the i-th argument, used for names.
func literal(st *State, i int) (string, error) {
	if i >= len(st.Node.Arguments) {
		return "", fmt.Errorf("%w: %s needs argument %d", domain.ErrMissingArgument, st.Label, i+1)
	}
	return st.Node.Arguments[i].Token.Value, nil
}

func (e *Engine) numberArg(ctx context.Context, st *State, i int) (float64, error) {
	v, err := e.arg(ctx, st, i)
	if err != nil {
		return 0, err
	}
	return toNumber(v)
}

func (e *Engine) textArg(ctx context.Context, st *State, i int) (string, error) {
	v, err := e.arg(ctx, st, i)
	if err != nil {
		return "", err
	}
	return FormatValue(v), nil
}

func toNumber(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidValue, x)
		}
		return f, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %v is not a number", domain.ErrInvalidValue, v)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}

func equal(a, b any) bool {
	switch x := a.(type) {
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case bool:
			return x == boolNumber(y)
		}
		return false
	case bool:
		switch y := b.(type) {
		case bool:
			return x == y
		case float64:
			return boolNumber(x) == y
		}
		return false
	}
	return a == b
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// compare orders two values of the same type. Booleans order false before true.
func compare(a, b any) (int, error) {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return cmpOrdered(x, y), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmpOrdered(boolNumber(x), boolNumber(y)), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %s with %s", domain.ErrInvalidValue, FormatValue(a), FormatValue(b))
}

func cmpOrdered(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func add(a, b any) (any, error) {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x + y, nil
		}
	case string:
		if y, ok := b.(string); ok {
			return x + y, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot add %s to %s", domain.ErrInvalidValue, FormatValue(b), FormatValue(a))
}

// FormatValue renders a value the way it is reported to the server and spoken.
// Whole numbers drop their fraction.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
