package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/pkg/adapters/websocket"
	"github.com/aretw0/botlink/pkg/api"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/ports"
	"github.com/aretw0/botlink/pkg/protocol"
)

// API is the part of the coordination server's HTTP surface the client needs.
type API interface {
	Version(ctx context.Context) (string, error)
	Authenticate(ctx context.Context, name, password string) (string, error)
	Register(ctx context.Context, machineName string) error
	FetchProgram(ctx context.Context, token, user, program string) (*ast.Program, error)
}

var _ API = (*api.Client)(nil)

// Hooks observe the session. Nil callbacks are skipped.
type Hooks struct {
	OnReceive   func(protocol.Message)
	OnSend      func(protocol.Message)
	OnState     func(domain.RobotState)
	OnOutcome   func(domain.Outcome)
	OnReconnect func(attempt int, delay time.Duration)
	OnConnected func(connected bool)
}

// Status is a point-in-time snapshot of the client.
type Status struct {
	Name           string            `json:"name"`
	State          domain.RobotState `json:"state"`
	Address        string            `json:"address,omitempty"`
	Connected      bool              `json:"connected"`
	Running        bool              `json:"running"`
	ConversationID int64             `json:"conversation_id"`
	Attempts       int               `json:"reconnect_attempts"`
	Statements     int               `json:"program_statements"`
	Triggers       []string          `json:"triggers"`
	Variables      map[string]any    `json:"variables"`
}

// Client is a robot connection to the coordination server.
type Client struct {
	addresses     []string
	name          string
	password      string
	dialer        ports.Dialer
	newAPI        func(address string) API
	engine        *runtime.Engine
	store         ports.ProgramStore
	locker        ports.Locker
	logger        *slog.Logger
	backoff       func(attempt int) time.Duration
	maxReconnects int
	settle        time.Duration
	hooks         []Hooks

	mu           sync.Mutex
	conn         ports.Conn
	api          API
	address      string
	token        string
	conversation int64
	attempts     int
	state        domain.RobotState
	running      bool
	program      *ast.Program

	closing   chan struct{}
	closeOnce sync.Once
	workers   sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithName sets the robot identity. Defaults to the host name.
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithPassword sets the optional robot password.
func WithPassword(password string) Option {
	return func(c *Client) {
		c.password = password
	}
}

// WithDialer sets the transport.
func WithDialer(d ports.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithAPI replaces how the HTTP client for an address is built.
func WithAPI(factory func(address string) API) Option {
	return func(c *Client) {
		c.newAPI = factory
	}
}

// WithEngine sets the interpreter programs run on.
func WithEngine(e *runtime.Engine) Option {
	return func(c *Client) {
		c.engine = e
	}
}

// WithStore mirrors the prepared program into persistent storage.
func WithStore(s ports.ProgramStore) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithLocker claims the robot name for the lifetime of Run.
func WithLocker(l ports.Locker) Option {
	return func(c *Client) {
		c.locker = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBackoff overrides the reconnect delay for a given attempt.
func WithBackoff(backoff func(attempt int) time.Duration) Option {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// WithMaxReconnects bounds consecutive failed attempts. Negative means unlimited.
func WithMaxReconnects(n int) Option {
	return func(c *Client) {
		c.maxReconnects = n
	}
}

// WithSettleDelay sets the pause between Authenticated and announcing Waiting.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) {
		c.settle = d
	}
}

// WithHooks attaches an observer.
func WithHooks(h Hooks) Option {
	return func(c *Client) {
		c.hooks = append(c.hooks, h)
	}
}

// Backoff is the default reconnect delay: 2^attempt seconds, capped at one minute.
func Backoff(attempt int) time.Duration {
	const ceiling = 60 * time.Second
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 6 {
		return ceiling
	}
	return min(time.Duration(1<<attempt)*time.Second, ceiling)
}

// New creates a client for the given server addresses, tried in order.
func New(addresses []string, opts ...Option) *Client {
	c := &Client{
		addresses:     addresses,
		logger:        logging.NewNop(),
		backoff:       Backoff,
		maxReconnects: 10,
		settle:        time.Second,
		state:         domain.StateDisconnected,
		closing:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "session")

	if c.name == "" {
		if host, err := os.Hostname(); err == nil {
			c.name = host
		}
	}
	if c.dialer == nil {
		c.dialer = websocket.NewDialer(websocket.WithLogger(c.logger))
	}
	if c.newAPI == nil {
		logger := c.logger
		c.newAPI = func(address string) API {
			return api.New(address, api.WithLogger(logger))
		}
	}
	if c.engine == nil {
		c.engine = runtime.New(runtime.WithLogger(c.logger))
	}
	c.engine.Observe(c.engineHooks())
	return c
}

// Name returns the robot identity.
func (c *Client) Name() string {
	return c.name
}

// Engine returns the interpreter.
func (c *Client) Engine() *runtime.Engine {
	return c.engine
}

// Run connects and serves until Close is called, ctx is done, authentication is
// rejected or reconnecting gives up. It returns nil after Close.
func (c *Client) Run(ctx context.Context) error {
	if len(c.addresses) == 0 {
		return domain.ErrNoServer
	}
	if c.isClosing() {
		return domain.ErrClosed
	}

	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, "robot:"+c.name, 0)
		if err != nil {
			return fmt.Errorf("failed to claim robot %s: %w", c.name, err)
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				c.logger.Warn("Failed to release robot lock", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.restore(ctx)
	defer c.shutdown()

	for {
		err := c.connect(ctx)
		if c.isClosing() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrAuthenticationRejected) {
			c.logger.Error("Giving up", "error", err)
			return err
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if c.maxReconnects >= 0 && attempt > c.maxReconnects {
			c.logger.Error("Reconnect attempts exhausted", "attempts", attempt-1, "error", err)
			return fmt.Errorf("%w after %d attempts: %v", domain.ErrReconnectExhausted, attempt-1, err)
		}

		delay := c.backoff(attempt)
		c.logger.Warn("Connection lost, retrying", "attempt", attempt, "delay", delay, "error", err)
		for _, h := range c.hooks {
			if h.OnReconnect != nil {
				h.OnReconnect(attempt, delay)
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			if c.isClosing() {
				return nil
			}
			return ctx.Err()
		}
	}
}

// Close stops the client for good. It interrupts backoff sleeps and cancels a running program.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.logger.Info("Closing")
		c.engine.Cancel()

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		c.setState(domain.StateClosed)
	})
	return nil
}

func (c *Client) isClosing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// shutdown waits for a running program to unwind once Run is leaving.
func (c *Client) shutdown() {
	c.engine.Cancel()
	c.workers.Wait()
	if c.isClosing() {
		c.setState(domain.StateClosed)
	} else {
		c.setState(domain.StateDisconnected)
	}
}

// Status returns a snapshot of the client.
func (c *Client) Status() Status {
	c.mu.Lock()
	s := Status{
		Name:           c.name,
		State:          c.state,
		Address:        c.address,
		Connected:      c.conn != nil,
		Running:        c.running,
		ConversationID: c.conversation,
		Attempts:       c.attempts,
		Statements:     c.program.Len(),
	}
	c.mu.Unlock()

	s.Triggers = c.engine.Triggers()
	s.Variables = c.engine.Variables()
	return s
}

// Program returns the prepared program, or nil.
func (c *Client) Program() *ast.Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.program
}

// Trigger fires a trigger block registered by the last program.
// It fails with ErrProgramRunning while a program or another trigger runs.
func (c *Client) Trigger(ctx context.Context, name string, value any) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return domain.ErrProgramRunning
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.engine.ClearCancel()
	err := c.engine.Trigger(ctx, name, value)
	if c.engine.Cancelled() {
		c.announce(ctx, domain.StateWaiting)
		c.endConversation()
	}
	return err
}

// BroadcastAlert sends an alert to the server.
func (c *Client) BroadcastAlert(ctx context.Context, id, message, severity string) error {
	return c.write(ctx, protocol.New(protocol.AlertBroadcast, 0).
		With("id", id).
		With("message", message).
		With("severity", severity))
}

// restore loads the program a previous process prepared.
func (c *Client) restore(ctx context.Context) {
	if c.store == nil {
		return
	}
	program, err := c.store.Load(ctx, c.name)
	if err != nil {
		if !errors.Is(err, domain.ErrProgramNotFound) {
			c.logger.Warn("Failed to restore program", "error", err)
		}
		return
	}
	c.mu.Lock()
	if c.program == nil {
		c.program = program
	}
	c.mu.Unlock()
	c.logger.Info("Restored program", "statements", program.Len())
}

// commit replaces the prepared program and mirrors it into the store.
func (c *Client) commit(ctx context.Context, program *ast.Program) {
	c.mu.Lock()
	c.program = program
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, c.name, program); err != nil {
			c.logger.Warn("Failed to persist program", "error", err)
		}
	}
}

func (c *Client) setState(state domain.RobotState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if !changed {
		return
	}
	c.logger.Debug("State changed", "state", state)
	for _, h := range c.hooks {
		if h.OnState != nil {
			h.OnState(state)
		}
	}
}

// announce changes state and tells the server.
func (c *Client) announce(ctx context.Context, state domain.RobotState) {
	c.setState(state)
	if err := c.send(ctx, protocol.RobotStateUpdate, "state", state.String()); err != nil {
		c.logger.Debug("State update not delivered", "state", state, "error", err)
	}
}

func (c *Client) beginConversation(id int64) {
	c.mu.Lock()
	c.conversation = id
	c.mu.Unlock()
}

func (c *Client) endConversation() {
	c.beginConversation(0)
}

// send writes a message stamped with the current conversation. kv alternates keys and values.
func (c *Client) send(ctx context.Context, t protocol.Type, kv ...string) error {
	c.mu.Lock()
	msg := protocol.New(t, c.conversation)
	c.mu.Unlock()

	for i := 0; i+1 < len(kv); i += 2 {
		msg = msg.With(kv[i], kv[i+1])
	}
	return c.write(ctx, msg)
}

func (c *Client) write(ctx context.Context, msg protocol.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return domain.ErrNotConnected
	}

	if err := conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	c.logger.Debug("Sent", "message", msg.String())
	for _, h := range c.hooks {
		if h.OnSend != nil {
			h.OnSend(msg)
		}
	}
	return nil
}
