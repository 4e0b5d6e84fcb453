package dsl

import (
	"strconv"

	"github.com/aretw0/botlink/pkg/ast"
)

// Builder collects the top-level statements of a program.
type Builder struct {
	nodes []*NodeBuilder
}

// New creates a new program builder.
func New() *Builder {
	return &Builder{}
}

// Call appends a top-level function call and returns its builder.
func (b *Builder) Call(name string, args ...*ast.Node) *NodeBuilder {
	nb := Call(name, args...)
	b.nodes = append(b.nodes, nb)
	return nb
}

// Compound appends a top-level compound node and returns its builder.
func (b *Builder) Compound(label string) *NodeBuilder {
	nb := Compound(label)
	b.nodes = append(b.nodes, nb)
	return nb
}

// Add appends already built statements.
func (b *Builder) Add(nodes ...*NodeBuilder) *Builder {
	b.nodes = append(b.nodes, nodes...)
	return b
}

// Build returns the program.
func (b *Builder) Build() *ast.Program {
	nodes := make([]*ast.Node, len(b.nodes))
	for i, nb := range b.nodes {
		nodes[i] = nb.Node()
	}
	return &ast.Program{Nodes: nodes}
}

// Program is a shortcut for building a program from statements.
func Program(nodes ...*NodeBuilder) *ast.Program {
	return New().Add(nodes...).Build()
}

// Text is a text literal.
func Text(value string) *ast.Node {
	return leaf(ast.NodeConstant, ast.TokenText, value)
}

// Const is a constant literal (evaluates as text).
func Const(value string) *ast.Node {
	return leaf(ast.NodeConstant, ast.TokenConstant, value)
}

// Number is a numeric literal.
func Number(value float64) *ast.Node {
	return leaf(ast.NodeConstant, ast.TokenNumber, strconv.FormatFloat(value, 'f', -1, 64))
}

// Bool is a boolean literal.
func Bool(value bool) *ast.Node {
	if value {
		return leaf(ast.NodeConstant, ast.TokenBoolean, "TRUE")
	}
	return leaf(ast.NodeConstant, ast.TokenBoolean, "FALSE")
}

// Colour is a colour literal in RRGGBB form.
func Colour(value string) *ast.Node {
	return leaf(ast.NodeConstant, ast.TokenColour, value)
}

// Var reads a variable.
func Var(name string) *ast.Node {
	return leaf(ast.NodeVariable, ast.TokenVariable, name)
}

// Expr is a function call used as an argument, e.g. equal(a, b).
func Expr(name string, args ...*ast.Node) *ast.Node {
	return Call(name, args...).Node()
}

func leaf(kind ast.NodeKind, tokenKind ast.TokenKind, value string) *ast.Node {
	return &ast.Node{Kind: kind, Token: ast.Token{Kind: tokenKind, Value: value}}
}
