package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProgramStoreContract runs a suite of tests to verify that a ProgramStore implementation
// adheres to the defined interface contract.
func RunProgramStoreContract(t *testing.T, store ProgramStore) {
	ctx := context.Background()
	robot := "contract-robot-" + time.Now().Format("20060102150405")

	program := func(name string) *ast.Program {
		return &ast.Program{Nodes: []*ast.Node{{
			Kind:     ast.NodeFunction,
			Token:    ast.Token{Kind: ast.TokenIdentifier, Value: name},
			SourceID: "src-" + name,
			Arguments: []*ast.Node{
				{Kind: ast.NodeConstant, Token: ast.Token{Kind: ast.TokenNumber, Value: "3"}},
			},
		}}}
	}

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, robot, program("wave"))
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, robot)
		require.NoError(t, err, "Load should not return error")
		require.Equal(t, 1, loaded.Len())
		assert.Equal(t, "wave", loaded.Nodes[0].Name())
		assert.Equal(t, "src-wave", loaded.Nodes[0].SourceID)
		assert.Equal(t, ast.TokenNumber, loaded.Nodes[0].Arguments[0].Token.Kind)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, robot, program("dance")))

		loaded, err := store.Load(ctx, robot)
		require.NoError(t, err)
		assert.Equal(t, "dance", loaded.Nodes[0].Name())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+robot)
		assert.ErrorIs(t, err, domain.ErrProgramNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, robot, program("wave")))

		err := store.Delete(ctx, robot)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, robot)
		assert.ErrorIs(t, err, domain.ErrProgramNotFound, "Load after Delete should return ErrProgramNotFound")
	})
}
