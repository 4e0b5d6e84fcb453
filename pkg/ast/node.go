package ast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Token is the literal carried by a node.
type Token struct {
	Kind  TokenKind `json:"type"`
	Value string    `json:"value"`
}

// Node is one element of a program tree.
// Function nodes name an instruction in Token.Value; Compound nodes group their Children under a label.
type Node struct {
	Kind      NodeKind `json:"type"`
	Token     Token    `json:"token"`
	SourceID  string   `json:"sourceId,omitempty"`
	Arguments []*Node  `json:"arguments,omitempty"`
	Children  []*Node  `json:"children,omitempty"`
}

// Name returns the token value, which is the function name for Function nodes.
func (n *Node) Name() string {
	if n == nil {
		return ""
	}
	return n.Token.Value
}

// Program is a decoded AST ready for execution.
type Program struct {
	Nodes []*Node `json:"nodes"`
}

// Len returns the number of top-level nodes.
func (p *Program) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Nodes)
}

// DecodeProgram parses a program document: either {"nodes": [...]} or a bare node array.
func DecodeProgram(data []byte) (*Program, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		nodes, err := DecodeNodes([]byte(trimmed))
		if err != nil {
			return nil, err
		}
		return &Program{Nodes: nodes}, nil
	}

	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode program: %w", err)
	}
	if err := validate(p.Nodes); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeNodes parses a JSON array of nodes.
func DecodeNodes(data []byte) ([]*Node, error) {
	var nodes []*Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}
	if err := validate(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// validate rejects null entries so the interpreter never meets a nil node.
func validate(nodes []*Node) error {
	for i, n := range nodes {
		if n == nil {
			return fmt.Errorf("failed to decode program: node %d is null", i)
		}
		if err := validate(n.Arguments); err != nil {
			return err
		}
		if err := validate(n.Children); err != nil {
			return err
		}
	}
	return nil
}

// FormatOptions controls how Format renders a node.
type FormatOptions struct {
	IncludeSourceIDs  bool
	IncludeTokenKinds bool
	ExcludeArguments  bool // render "()" in place of the arguments
	ExcludeChildren   bool // render "{}" in place of the children
}

// String renders the node as Kind:Value(args){children}.
func (n *Node) String() string {
	return Format(n, FormatOptions{})
}

// Format renders a node and its subtree on a single line.
func Format(n *Node, opts FormatOptions) string {
	var b strings.Builder
	format(&b, n, opts)
	return b.String()
}

func format(b *strings.Builder, n *Node, opts FormatOptions) {
	if n == nil {
		return
	}
	if opts.IncludeSourceIDs && n.SourceID != "" {
		fmt.Fprintf(b, "[%s]", n.SourceID)
	}
	fmt.Fprintf(b, "%s:%s", n.Kind, n.Token.Value)
	if opts.IncludeTokenKinds {
		b.WriteString("=>" + strings.ToUpper(n.Token.Kind.String()))
	}

	if len(n.Arguments) > 0 {
		b.WriteByte('(')
		if !opts.ExcludeArguments {
			for i, arg := range n.Arguments {
				if i > 0 {
					b.WriteByte(',')
				}
				format(b, arg, opts)
			}
		}
		b.WriteByte(')')
	}

	if len(n.Children) > 0 {
		b.WriteByte('{')
		if !opts.ExcludeChildren {
			for i, child := range n.Children {
				if i > 0 {
					b.WriteByte(',')
				}
				format(b, child, opts)
			}
		}
		b.WriteByte('}')
	}
}

// Outline renders the program as a Markdown list, one line per function call.
func Outline(p *Program) string {
	var b strings.Builder
	b.WriteString("# Program\n\n")
	if p.Len() == 0 {
		b.WriteString("_empty_\n")
		return b.String()
	}
	for _, n := range p.Nodes {
		outline(&b, n, 0)
	}
	return b.String()
}

func outline(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	line := "**" + n.Token.Value + "**"
	if len(n.Arguments) > 0 {
		args := make([]string, len(n.Arguments))
		for i, arg := range n.Arguments {
			args[i] = "`" + Format(arg, FormatOptions{}) + "`"
		}
		line += " " + strings.Join(args, ", ")
	}
	if n.SourceID != "" {
		line += " _(" + n.SourceID + ")_"
	}
	fmt.Fprintf(b, "%s- %s\n", indent, line)
	for _, child := range n.Children {
		outline(b, child, depth+1)
	}
}
