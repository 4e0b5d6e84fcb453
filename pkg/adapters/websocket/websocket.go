// Package websocket carries protocol messages as JSON documents over a websocket.
package websocket

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/pkg/ports"
	"github.com/aretw0/botlink/pkg/protocol"
	"github.com/gorilla/websocket"
)

// Path is the robot endpoint on the coordination server.
const Path = "/api/v1/connections/robot"

// Dialer opens robot connections.
type Dialer struct {
	secure  bool
	verify  bool
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithSecure selects wss (true, the default) or ws.
func WithSecure(secure bool) Option {
	return func(d *Dialer) {
		d.secure = secure
	}
}

// WithVerify toggles TLS certificate verification.
func WithVerify(verify bool) Option {
	return func(d *Dialer) {
		d.verify = verify
	}
}

// WithPath overrides the endpoint path.
func WithPath(path string) Option {
	return func(d *Dialer) {
		d.path = path
	}
}

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(d *Dialer) {
		d.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dialer) {
		d.logger = logger
	}
}

// NewDialer creates a websocket dialer.
func NewDialer(opts ...Option) *Dialer {
	d := &Dialer{
		secure:  true,
		verify:  true,
		path:    Path,
		timeout: 10 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "websocket")
	return d
}

var _ ports.Dialer = (*Dialer)(nil)

// URL returns the websocket URL for address.
func (d *Dialer) URL(address string) string {
	u := url.URL{Scheme: "wss", Host: address, Path: d.path}
	if !d.secure {
		u.Scheme = "ws"
	}
	return u.String()
}

// Dial opens a connection to address.
func (d *Dialer) Dial(ctx context.Context, address string) (ports.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.timeout,
	}
	if !d.verify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	target := d.URL(address)
	d.logger.Debug("Connecting", "url", target)
	c, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return NewConn(c, d.logger), nil
}

// Conn adapts a websocket connection to ports.Conn.
type Conn struct {
	ws     *websocket.Conn
	codec  protocol.JSONCodec
	logger *slog.Logger

	writeMu sync.Mutex
	once    sync.Once
}

// NewConn wraps an established websocket connection, client or server side.
func NewConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Conn{ws: ws, logger: logger}
}

// Receive reads the next message.
func (c *Conn) Receive() (protocol.Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return protocol.Message{}, err
	}
	c.logger.Debug("Message received", "data", string(data))
	return c.codec.Decode(data)
}

// Send writes one message as a text frame.
func (c *Conn) Send(ctx context.Context, msg protocol.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	c.logger.Debug("Message sent", "data", string(data))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
