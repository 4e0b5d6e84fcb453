package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/pkg/adapters/memory"
	"github.com/aretw0/botlink/pkg/api"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/protocol"
	"github.com/aretw0/botlink/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 5 * time.Second

// coordinator stands in for the coordination server's HTTP surface.
type coordinator struct {
	address string

	mu         sync.Mutex
	programs   map[string]*ast.Program
	registered []string
	onFetch    func(program string)
	outages    int
}

func newCoordinator(t *testing.T) *coordinator {
	t.Helper()
	c := &coordinator{programs: map[string]*ast.Program{}}

	r := chi.NewRouter()
	r.Get("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"2.0.0"}`))
	})
	r.Post("/api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		down := c.outages > 0
		if down {
			c.outages--
		}
		c.mu.Unlock()
		if down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["name"] != "nao" || req["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"successful":true,"output":{"token":"tok-1"}}`))
	})
	r.Post("/api/v1/robots/register", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		c.mu.Lock()
		c.registered = append(c.registered, req["machineName"])
		c.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/api/v1/code/{user}/{program}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "program")
		c.mu.Lock()
		program, ok := c.programs[name]
		hook := c.onFetch
		c.mu.Unlock()

		if hook != nil {
			hook(name)
		}
		if !ok || r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("no such program"))
			return
		}
		data, err := json.Marshal(map[string]any{"successful": true, "output": program})
		assert.NoError(t, err)
		w.Write(data)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c.address = strings.TrimPrefix(srv.URL, "http://")
	return c
}

func (c *coordinator) publish(name string, program *ast.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[name] = program
}

// failSessions makes the next n authentication calls answer 503.
func (c *coordinator) failSessions(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outages = n
}

func (c *coordinator) fetchHook(fn func(program string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFetch = fn
}

func (c *coordinator) registrations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.registered...)
}

// rig wires a client to the coordinator over an in-memory network.
type rig struct {
	coord    *coordinator
	network  *memory.Network
	actuator *memory.Actuator
	engine   *runtime.Engine
	client   *session.Client

	finished chan struct{}
	err      error
}

func newRig(t *testing.T, opts ...session.Option) *rig {
	t.Helper()
	r := &rig{
		coord:    newCoordinator(t),
		network:  memory.NewNetwork(),
		actuator: memory.NewActuator(),
	}
	r.engine = runtime.New(runtime.WithActuator(r.actuator), runtime.WithSecond(10*time.Millisecond))

	base := []session.Option{
		session.WithName("nao"),
		session.WithPassword("secret"),
		session.WithDialer(r.network),
		session.WithAPI(newAPI),
		session.WithEngine(r.engine),
		session.WithSettleDelay(0),
		session.WithBackoff(func(int) time.Duration { return time.Millisecond }),
	}
	r.client = session.New([]string{r.coord.address}, append(base, opts...)...)
	return r
}

func newAPI(address string) session.API {
	return api.New(address, api.WithSecure(false), api.WithTimeout(2*time.Second))
}

// start runs the client until the test ends.
func (r *rig) start(t *testing.T) {
	t.Helper()
	r.finished = make(chan struct{})
	go func() {
		r.err = r.client.Run(context.Background())
		close(r.finished)
	}()
	t.Cleanup(func() {
		_ = r.client.Close()
		select {
		case <-r.finished:
		case <-time.After(wait):
			t.Error("client did not stop")
		}
	})
}

// result waits for Run to return.
func (r *rig) result(t *testing.T) error {
	t.Helper()
	select {
	case <-r.finished:
		return r.err
	case <-time.After(wait):
		t.Fatal("client did not return")
		return nil
	}
}

// peer is the server end of one connection.
type peer struct {
	conn *memory.Conn
	in   chan protocol.Message
}

func (r *rig) accept(t *testing.T) *peer {
	t.Helper()
	select {
	case a := <-r.network.Accept():
		p := &peer{conn: a.Conn, in: make(chan protocol.Message, 256)}
		go func() {
			defer close(p.in)
			for {
				msg, err := a.Conn.Receive()
				if err != nil {
					return
				}
				p.in <- msg
			}
		}()
		return p
	case <-time.After(wait):
		t.Fatal("no connection")
		return nil
	}
}

// connect accepts a connection and completes the handshake.
func (r *rig) connect(t *testing.T) *peer {
	t.Helper()
	p := r.accept(t)
	auth := p.expect(t, protocol.Authenticate)
	assert.Equal(t, "tok-1", auth.Value("token"))

	p.send(t, protocol.New(protocol.Authenticated, 1))
	p.expectState(t, "Waiting", 1)
	return p
}

func (p *peer) send(t *testing.T, msg protocol.Message) {
	t.Helper()
	require.NoError(t, p.conn.Send(context.Background(), msg))
}

func (p *peer) next(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-p.in:
		require.True(t, ok, "connection closed")
		return msg
	case <-time.After(wait):
		t.Fatal("timed out waiting for a message")
		return protocol.Message{}
	}
}

func (p *peer) expect(t *testing.T, typ protocol.Type) protocol.Message {
	t.Helper()
	msg := p.next(t)
	require.Equal(t, typ, msg.Type, "got %s", msg)
	return msg
}

func (p *peer) expectState(t *testing.T, state string, conversation int64) {
	t.Helper()
	msg := p.expect(t, protocol.RobotStateUpdate)
	assert.Equal(t, state, msg.Value("state"), "got %s", msg)
	assert.Equal(t, conversation, msg.ConversationID, "got %s", msg)
}

// until skips messages up to the first of the given type and returns it with everything skipped.
func (p *peer) until(t *testing.T, typ protocol.Type) (protocol.Message, []protocol.Message) {
	t.Helper()
	var skipped []protocol.Message
	for {
		msg := p.next(t)
		if msg.Type == typ {
			return msg, skipped
		}
		skipped = append(skipped, msg)
	}
}

// untilState skips messages up to the announcement of state.
func (p *peer) untilState(t *testing.T, state string) protocol.Message {
	t.Helper()
	for {
		msg, _ := p.until(t, protocol.RobotStateUpdate)
		if msg.Value("state") == state {
			return msg
		}
	}
}
