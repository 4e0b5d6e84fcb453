package validator

import (
	"testing"

	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProgram(t *testing.T) {
	table := runtime.New()

	tests := []struct {
		name    string
		program *ast.Program
		want    []error
	}{
		{
			name: "Valid",
			program: dsl.Program(
				dsl.Call("variable", dsl.Text("x"), dsl.Number(1)),
				dsl.Call("if", dsl.Expr("equal", dsl.Var("x"), dsl.Number(1))).Do(
					dsl.Call("say", dsl.Text("one")),
				),
				dsl.Call("frontButton").Do(dsl.Call("wave")),
			),
		},
		{
			name: "User Function Called Before Definition",
			program: dsl.Program(
				dsl.Call("greet"),
				dsl.Call("function", dsl.Text("greet")).Do(dsl.Call("say", dsl.Text("hi"))),
			),
		},
		{
			name:    "Unknown Function",
			program: dsl.Program(dsl.Call("fly").ID("9")),
			want:    []error{domain.ErrUnknownFunction},
		},
		{
			name:    "Unknown Expression",
			program: dsl.Program(dsl.Call("say", dsl.Expr("shout", dsl.Text("x")))),
			want:    []error{domain.ErrUnknownFunction},
		},
		{
			name: "Top Level Only Inside A Block",
			program: dsl.Program(
				dsl.Call("loop", dsl.Number(2)).Do(dsl.Call("frontButton")),
			),
			want: []error{domain.ErrFunctionNotAllowedHere},
		},
		{
			name: "Redefinition",
			program: dsl.Program(
				dsl.Call("function", dsl.Text("say")),
				dsl.Call("function", dsl.Text("mine")),
				dsl.Call("function", dsl.Text("mine")),
			),
			want: []error{domain.ErrDuplicateFunction, domain.ErrDuplicateFunction},
		},
		{
			name: "Invalid Node",
			program: &ast.Program{Nodes: []*ast.Node{
				{Kind: ast.NodeInvalid, Token: ast.Token{Value: "???"}},
			}},
			want: []error{domain.ErrUnknownNodeType},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProgram(tt.program, table)
			if len(tt.want) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			issues := Issues(err)
			require.Len(t, issues, len(tt.want), err.Error())
			for i, want := range tt.want {
				assert.ErrorIs(t, issues[i].Err, want)
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestIssue_String(t *testing.T) {
	err := ValidateProgram(dsl.Program(dsl.Call("fly").ID("9")), runtime.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 1 errors")
	assert.Contains(t, err.Error(), "fly (block 9)")
	assert.Nil(t, Issues(nil))
}
