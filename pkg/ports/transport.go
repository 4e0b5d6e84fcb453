package ports

import (
	"context"

	"github.com/aretw0/botlink/pkg/protocol"
)

// Conn is an open duplex connection to the coordination server.
type Conn interface {
	// Receive blocks until the next message arrives. It has no read timeout.
	// Decode failures return an error wrapping protocol.ErrMalformedMessage and leave the connection usable.
	Receive() (protocol.Message, error)

	// Send writes one message. It is safe for concurrent use.
	Send(ctx context.Context, msg protocol.Message) error

	// Close tears the connection down and unblocks Receive.
	Close() error
}

// Dialer opens connections to a server address ("host" or "host:port").
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}
