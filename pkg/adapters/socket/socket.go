// Package socket carries protocol messages over a raw TCP stream using the binary framing.
package socket

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/pkg/ports"
	"github.com/aretw0/botlink/pkg/protocol"
)

// DefaultPort is used when the address carries no port.
const DefaultPort = 5000

// Dialer opens framed socket connections.
type Dialer struct {
	port    int
	secure  bool
	verify  bool
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithPort replaces whatever port the address names.
func WithPort(port int) Option {
	return func(d *Dialer) {
		d.port = port
	}
}

// WithTLS wraps the stream in TLS.
func WithTLS(verify bool) Option {
	return func(d *Dialer) {
		d.secure = true
		d.verify = verify
	}
}

// WithTimeout bounds connection setup.
func WithTimeout(timeout time.Duration) Option {
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

// NewDialer creates a socket dialer.
func NewDialer(opts ...Option) *Dialer {
	d := &Dialer{
		timeout: 10 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "socket")
	return d
}

var _ ports.Dialer = (*Dialer)(nil)

// Target resolves the host:port that Dial connects to.
func (d *Dialer) Target(address string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		host = address
		port = strconv.Itoa(DefaultPort)
	}
	if d.port > 0 {
		port = strconv.Itoa(d.port)
	}
	return net.JoinHostPort(host, port)
}

// Dial connects to address.
func (d *Dialer) Dial(ctx context.Context, address string) (ports.Conn, error) {
	target := d.Target(address)
	nd := &net.Dialer{Timeout: d.timeout}

	var (
		c   net.Conn
		err error
	)
	if d.secure {
		host, _, _ := net.SplitHostPort(target)
		td := &tls.Dialer{
			NetDialer: nd,
			Config:    &tls.Config{ServerName: host, InsecureSkipVerify: !d.verify},
		}
		c, err = td.DialContext(ctx, "tcp", target)
	} else {
		c, err = nd.DialContext(ctx, "tcp", target)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	d.logger.Debug("Connected", "address", target)
	return NewConn(c, protocol.NewClientFramer(), d.logger), nil
}

// Conn adapts a stream to ports.Conn.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	framer *protocol.Framer
	logger *slog.Logger

	writeMu sync.Mutex
}

// NewConn wraps an established stream. Use protocol.NewServerFramer for the server end.
func NewConn(c net.Conn, framer *protocol.Framer, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Conn{
		conn:   c,
		reader: bufio.NewReader(c),
		framer: framer,
		logger: logger,
	}
}

// Receive reads the next frame.
func (c *Conn) Receive() (protocol.Message, error) {
	msg, err := c.framer.Read(c.reader)
	if err != nil {
		return protocol.Message{}, err
	}
	c.logger.Debug("Message received", "message", msg.String())
	return msg, nil
}

// Send writes one frame.
func (c *Conn) Send(ctx context.Context, msg protocol.Message) error {
	frame, err := c.framer.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return err
	}
	c.logger.Debug("Message sent", "message", msg.String())
	return nil
}

// Close closes the stream.
func (c *Conn) Close() error {
	return c.conn.Close()
}
