package memory

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aretw0/botlink/pkg/ports"
	"github.com/aretw0/botlink/pkg/protocol"
)

// ErrRefused is returned by a Network that was told to refuse connections.
var ErrRefused = errors.New("connection refused")

// Conn is one end of an in-process pipe. Receive returns io.EOF once either end closes.
type Conn struct {
	in   <-chan protocol.Message
	out  chan<- protocol.Message
	done chan struct{}
	peer *Conn
	once sync.Once
}

// Pipe returns two connected ends.
func Pipe() (*Conn, *Conn) {
	ab := make(chan protocol.Message, 64)
	ba := make(chan protocol.Message, 64)
	a := &Conn{in: ba, out: ab, done: make(chan struct{})}
	b := &Conn{in: ab, out: ba, done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Receive blocks for the next message.
func (c *Conn) Receive() (protocol.Message, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		return protocol.Message{}, io.EOF
	case <-c.peer.done:
		// Drain what the peer sent before it hung up
		select {
		case msg := <-c.in:
			return msg, nil
		default:
		}
		return protocol.Message{}, io.EOF
	}
}

// Send queues a message for the peer.
func (c *Conn) Send(ctx context.Context, msg protocol.Message) error {
	select {
	case <-c.done:
		return io.ErrClosedPipe
	case <-c.peer.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case c.out <- clone(msg):
		return nil
	case <-c.done:
		return io.ErrClosedPipe
	case <-c.peer.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes this end. It is idempotent.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func clone(msg protocol.Message) protocol.Message {
	values := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		values[k] = v
	}
	msg.Values = values
	return msg
}

// Network is a ports.Dialer that hands the server end of every dialled pipe to Accept.
type Network struct {
	mu      sync.Mutex
	refuse  map[string]bool
	dialled []string
	accept  chan *Accepted
}

// Accepted is the server side of a dialled connection.
type Accepted struct {
	Address string
	Conn    *Conn
}

// NewNetwork creates an in-process network.
func NewNetwork() *Network {
	return &Network{refuse: map[string]bool{}, accept: make(chan *Accepted, 16)}
}

var _ ports.Dialer = (*Network)(nil)

// Dial connects to address unless it is refused.
func (n *Network) Dial(ctx context.Context, address string) (ports.Conn, error) {
	n.mu.Lock()
	n.dialled = append(n.dialled, address)
	refused := n.refuse[address]
	n.mu.Unlock()
	if refused {
		return nil, ErrRefused
	}

	client, server := Pipe()
	select {
	case n.accept <- &Accepted{Address: address, Conn: server}:
		return client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refuse makes future dials to address fail (or succeed again when refuse is false).
func (n *Network) Refuse(address string, refuse bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refuse[address] = refuse
}

// Accept returns the channel of server ends.
func (n *Network) Accept() <-chan *Accepted {
	return n.accept
}

// Dialled lists every dialled address in order.
func (n *Network) Dialled() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.dialled))
	copy(out, n.dialled)
	return out
}
