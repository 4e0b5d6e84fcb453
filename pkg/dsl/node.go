package dsl

import "github.com/aretw0/botlink/pkg/ast"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node ast.Node
	body []*NodeBuilder
}

// Call starts a function call node.
func Call(name string, args ...*ast.Node) *NodeBuilder {
	return &NodeBuilder{node: ast.Node{
		Kind:      ast.NodeFunction,
		Token:     ast.Token{Kind: ast.TokenIdentifier, Value: name},
		Arguments: args,
	}}
}

// Compound starts a compound node, such as an if/elseif/else chain.
func Compound(label string) *NodeBuilder {
	return &NodeBuilder{node: ast.Node{
		Kind:  ast.NodeCompound,
		Token: ast.Token{Kind: ast.TokenIdentifier, Value: label},
	}}
}

// ID sets the source id reported in debug messages.
func (n *NodeBuilder) ID(sourceID string) *NodeBuilder {
	n.node.SourceID = sourceID
	return n
}

// Do appends child statements.
func (n *NodeBuilder) Do(children ...*NodeBuilder) *NodeBuilder {
	n.body = append(n.body, children...)
	return n
}

// Node returns the built node.
func (n *NodeBuilder) Node() *ast.Node {
	node := n.node
	if len(n.body) > 0 {
		node.Children = make([]*ast.Node, len(n.body))
		for i, child := range n.body {
			node.Children[i] = child.Node()
		}
	}
	return &node
}
