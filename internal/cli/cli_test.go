package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/botlink/internal/config"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProgram(t *testing.T, p *ast.Program) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "program.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestExec(t *testing.T) {
	path := writeProgram(t, dsl.Program(
		dsl.Call("variable", dsl.Text("x"), dsl.Number(5)),
		dsl.Call("say", dsl.Text("hello")),
		dsl.Call("frontButton").Do(dsl.Call("turn", dsl.Number(90))),
		dsl.Call("nonsense"),
	))

	var out bytes.Buffer
	err := Exec(context.Background(), ExecOptions{
		Path:     path,
		Second:   time.Millisecond,
		Triggers: []string{"front"},
		Out:      &out,
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "state: x = 5")
	assert.Contains(t, got, "robot: say[hello]")
	assert.Contains(t, got, "robot: turn[90]")
	assert.Contains(t, got, "error: ")
	assert.Contains(t, got, "Finished: 2 robot actions")
}

func TestExec_UnknownTrigger(t *testing.T) {
	path := writeProgram(t, dsl.Program(dsl.Call("say", dsl.Text("hi"))))

	err := Exec(context.Background(), ExecOptions{Path: path, Triggers: []string{"rear"}, Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, domain.ErrTriggerNotRegistered)
}

func TestExec_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{nodes"), 0644))

	assert.Error(t, Exec(context.Background(), ExecOptions{Path: path, Out: &bytes.Buffer{}}))
	assert.Error(t, Exec(context.Background(), ExecOptions{Path: path + ".missing", Out: &bytes.Buffer{}}))
}

func TestShow(t *testing.T) {
	p := dsl.Program(dsl.Call("say", dsl.Text("hello")).ID("7"))
	path := writeProgram(t, p)

	var out bytes.Buffer
	require.NoError(t, Show(path, &out, ShowOptions{}))
	assert.Equal(t, ast.Outline(p), out.String())

	out.Reset()
	require.NoError(t, Show(path, &out, ShowOptions{Mermaid: true}))
	assert.Contains(t, out.String(), "graph TD")
	assert.Contains(t, out.String(), "b_7[")
}

func TestExec_Mermaid(t *testing.T) {
	path := writeProgram(t, dsl.Program(
		dsl.Call("say", dsl.Text("a")).ID("1"),
		dsl.Call("frontButton").ID("2").Do(dsl.Call("wave").ID("3")),
	))

	var out bytes.Buffer
	require.NoError(t, Exec(context.Background(), ExecOptions{Path: path, Mermaid: true, Out: &out}))
	assert.Contains(t, out.String(), "class b_1 visited;")
	assert.Contains(t, out.String(), "class b_2 current;")
	assert.NotContains(t, out.String(), "class b_3")
}

func TestValidate(t *testing.T) {
	var out bytes.Buffer
	good := writeProgram(t, dsl.Program(dsl.Call("say", dsl.Text("hi"))))
	require.NoError(t, Validate(good, &out))
	assert.Contains(t, out.String(), "1 statements, no errors")

	bad := writeProgram(t, dsl.Program(dsl.Call("fly")))
	assert.ErrorIs(t, Validate(bad, &out), domain.ErrUnknownFunction)
}

func TestRun_RequiresAddresses(t *testing.T) {
	err := Run(context.Background(), RunOptions{Config: config.Default(), Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, domain.ErrNoServer)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		cfg    config.Store
		locker bool
	}{
		{"Memory", config.Store{Kind: config.StoreMemory}, false},
		{"File", config.Store{Kind: config.StoreFile, Path: filepath.Join(dir, "programs")}, false},
		{"Bolt", config.Store{Kind: config.StoreBolt, Path: filepath.Join(dir, "programs.db")}, false},
		{"Redis", config.Store{Kind: config.StoreRedis, Redis: config.Redis{Address: "127.0.0.1:1"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := openStore(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, b.store)
			assert.Equal(t, tt.locker, b.locker != nil)
			assert.NoError(t, b.close())
		})
	}

	_, err := openStore(config.Store{Kind: "tape"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestOpenStore_Encrypted(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	b, err := openStore(config.Store{Kind: config.StoreMemory, EncryptionKey: key})
	require.NoError(t, err)
	defer b.close()

	ctx := context.Background()
	require.NoError(t, b.store.Save(ctx, "nao", dsl.Program(dsl.Call("wave"))))
	p, err := b.store.Load(ctx, "nao")
	require.NoError(t, err)
	assert.Equal(t, "wave", p.Nodes[0].Name())

	_, err = openStore(config.Store{Kind: config.StoreMemory, EncryptionKey: "bad"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestCreateLogger(t *testing.T) {
	logger := createLogger(config.Log{Level: "warn"}, false)
	assert.False(t, logger.Enabled(context.Background(), -4))
	assert.True(t, createLogger(config.Log{Level: "warn"}, true).Enabled(context.Background(), -4))
}
