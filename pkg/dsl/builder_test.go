package dsl

import (
	"testing"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleProgram(t *testing.T) {
	b := New()

	b.Call("variable", Text("x"), Number(5))
	b.Call("if", Expr("equal", Var("x"), Number(5))).
		ID("blk-1").
		Do(Call("say", Text("yes")))

	p := b.Build()
	require.Equal(t, 2, p.Len())

	assert.Equal(t, "Function:variable(Constant:x,Constant:5)", p.Nodes[0].String())
	assert.Equal(t, "Function:if(Function:equal(Variable:x,Constant:5)){Function:say(Constant:yes)}", p.Nodes[1].String())
	assert.Equal(t, "blk-1", p.Nodes[1].SourceID)
}

func TestBuilder_Literals(t *testing.T) {
	assert.Equal(t, ast.TokenBoolean, Bool(true).Token.Kind)
	assert.Equal(t, "TRUE", Bool(true).Token.Value)
	assert.Equal(t, "FALSE", Bool(false).Token.Value)
	assert.Equal(t, "2.5", Number(2.5).Token.Value)
	assert.Equal(t, ast.TokenColour, Colour("ff0000").Token.Kind)
	assert.Equal(t, ast.TokenConstant, Const("left").Token.Kind)
}

func TestBuilder_CompoundAndProgram(t *testing.T) {
	p := Program(
		Compound("if").Do(
			Call("if", Bool(false)).Do(Call("say", Text("a"))),
			Call("else").Do(Call("say", Text("b"))),
		),
	)

	require.Equal(t, 1, p.Len())
	assert.Equal(t, ast.NodeCompound, p.Nodes[0].Kind)
	assert.Len(t, p.Nodes[0].Children, 2)
}

func TestNodeBuilder_NodeIsACopy(t *testing.T) {
	nb := Call("wave")
	first := nb.Node()
	nb.Do(Call("say", Text("x")))
	second := nb.Node()

	assert.Empty(t, first.Children)
	assert.Len(t, second.Children, 1)
}
