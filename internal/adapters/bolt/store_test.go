package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/botlink/internal/adapters/bolt"
	"github.com/aretw0/botlink/pkg/dsl"
	"github.com/aretw0/botlink/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ProgramStore = (*bolt.Store)(nil)

func open(t *testing.T, path string) *bolt.Store {
	t.Helper()
	store, err := bolt.Open(path)
	require.NoError(t, err)
	return store
}

func TestBoltStore_Contract(t *testing.T) {
	store := open(t, filepath.Join(t.TempDir(), "programs.db"))
	defer store.Close()

	ports.RunProgramStoreContract(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "programs.db")
	ctx := context.Background()

	store := open(t, path)
	require.NoError(t, store.Save(ctx, "mira", dsl.Program(dsl.Call("say", dsl.Text("back again")))))
	require.NoError(t, store.Save(ctx, "alpha", dsl.Program(dsl.Call("wave"))))
	require.NoError(t, store.Close())

	store = open(t, path)
	defer store.Close()

	program, err := store.Load(ctx, "mira")
	require.NoError(t, err)
	assert.Equal(t, "say", program.Nodes[0].Name())

	robots, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mira"}, robots)
}
