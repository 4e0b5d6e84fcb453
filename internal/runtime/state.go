package runtime

import "github.com/aretw0/botlink/pkg/ast"

// State is the frame of one function or compound invocation.
type State struct {
	Node   *ast.Node
	Parent *State
	Label  string

	completed bool
}

func newState(node *ast.Node, parent *State, label string) *State {
	return &State{Node: node, Parent: parent, Label: label}
}

// Complete marks the frame as completed. There is no way back.
func (s *State) Complete() {
	s.completed = true
}

// Completed reports whether Complete was called.
func (s *State) Completed() bool {
	return s.completed
}
