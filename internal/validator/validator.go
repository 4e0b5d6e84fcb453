package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
)

// Functions is the function table a program is checked against.
type Functions interface {
	HasFunction(name string) bool
	TopLevelOnly(name string) bool
}

// Issue is one call the interpreter would reject.
type Issue struct {
	SourceID string
	Function string
	Err      error
}

func (i Issue) String() string {
	if i.SourceID != "" {
		return fmt.Sprintf("%s (block %s): %v", i.Function, i.SourceID, i.Err)
	}
	return fmt.Sprintf("%s: %v", i.Function, i.Err)
}

// Error lists every issue found in a program.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Issues), strings.Join(lines, "\n- "))
}

// Unwrap exposes the sentinel of every issue to errors.Is.
func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for i, issue := range e.Issues {
		errs[i] = issue.Err
	}
	return errs
}

type item struct {
	node      *ast.Node
	topLevel  bool
	statement bool
}

// ValidateProgram walks every call in p breadth-first and reports unknown
// functions, top-level functions used inside a block, redefinitions, and
// nodes of an unknown type. Functions the program defines itself count as known.
func ValidateProgram(p *ast.Program, table Functions) error {
	if p == nil {
		return nil
	}

	var issues []Issue
	defined := make(map[string]bool)
	queue := make([]item, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		queue = append(queue, item{n, true, true})
	}

	// First pass: user-defined functions, so calls before the definition still resolve.
	for i := 0; i < len(queue); i++ {
		n := queue[i].node
		if n == nil {
			continue
		}
		if n.Kind == ast.NodeFunction && n.Name() == "function" && len(n.Arguments) > 0 {
			name := n.Arguments[0].Token.Value
			if defined[name] || table.HasFunction(name) {
				issues = append(issues, Issue{n.SourceID, name, fmt.Errorf("%w: %s cannot be redefined", domain.ErrDuplicateFunction, name)})
			}
			defined[name] = true
		}
		for _, arg := range n.Arguments {
			queue = append(queue, item{arg, false, false})
		}
		for _, child := range n.Children {
			queue = append(queue, item{child, false, true})
		}
	}

	for _, it := range queue {
		n := it.node
		if n == nil {
			continue
		}
		switch n.Kind {
		case ast.NodeFunction:
			name := n.Name()
			switch {
			case !table.HasFunction(name) && !defined[name]:
				issues = append(issues, Issue{n.SourceID, name, fmt.Errorf("%w: %s", domain.ErrUnknownFunction, name)})
			case table.TopLevelOnly(name) && !it.topLevel:
				issues = append(issues, Issue{n.SourceID, name, fmt.Errorf("%w: %s", domain.ErrFunctionNotAllowedHere, name)})
			}
		case ast.NodeCompound:
		default:
			if n.Kind != ast.NodeInvalid && !it.statement {
				continue
			}
			issues = append(issues, Issue{n.SourceID, n.Name(), fmt.Errorf("%w: %s", domain.ErrUnknownNodeType, n.Kind)})
		}
	}

	if len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}

// Issues extracts the issue list from a validation error.
func Issues(err error) []Issue {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Issues
	}
	return nil
}
