package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/botlink/pkg/api"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/ports"
	"github.com/aretw0/botlink/pkg/protocol"
)

// connect runs one full connect sequence and then serves the connection until it drops.
// Addresses are tried in order; the last failure is returned when none works out.
func (c *Client) connect(ctx context.Context) error {
	c.setState(domain.StateConnecting)

	lastErr := domain.ErrNoServer
	for _, address := range c.addresses {
		client := c.newAPI(address)

		version, err := client.Version(ctx)
		if err != nil {
			c.logger.Warn("Server did not answer", "address", address, "error", err)
			lastErr = fmt.Errorf("%w: %s: %v", domain.ErrNoServer, address, err)
			continue
		}
		c.logger.Info("Found server", "address", address, "version", version)

		c.setState(domain.StateAuthenticating)
		token, err := client.Authenticate(ctx, c.name, c.password)
		if err != nil {
			if errors.Is(err, api.ErrNotAuthenticated) {
				c.logger.Warn("Robot not recognised, registering", "name", c.name, "error", err)
				if rerr := client.Register(ctx, c.name); rerr != nil {
					c.logger.Warn("Registration failed", "name", c.name, "error", rerr)
				}
				return fmt.Errorf("%w: %s at %s", domain.ErrAuthenticationRejected, c.name, address)
			}
			lastErr = err
			continue
		}

		conn, err := c.dialer.Dial(ctx, address)
		if err != nil {
			c.logger.Warn("Unable to open connection", "address", address, "error", err)
			lastErr = err
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.api = client
		c.address = address
		c.token = token
		c.attempts = 0
		c.mu.Unlock()

		if c.isClosing() {
			_ = conn.Close()
			return domain.ErrClosed
		}

		c.logger.Info("Connected", "address", address)
		for _, h := range c.hooks {
			if h.OnConnected != nil {
				h.OnConnected(true)
			}
		}

		if err := c.write(ctx, protocol.New(protocol.Authenticate, 0).With("token", token)); err != nil {
			c.disconnect(conn)
			lastErr = err
			continue
		}
		return c.serve(ctx, conn)
	}
	return lastErr
}

// serve is the receive loop. It returns when the connection drops.
func (c *Client) serve(ctx context.Context, conn ports.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		msg, err := conn.Receive()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				c.logger.Warn("Skipping malformed message", "error", err)
				continue
			}
			c.disconnect(conn)
			return fmt.Errorf("connection lost: %w", err)
		}

		c.logger.Debug("Received", "message", msg.String())
		for _, h := range c.hooks {
			if h.OnReceive != nil {
				h.OnReceive(msg)
			}
		}
		c.handle(ctx, msg)
	}
}

// disconnect forgets conn and stops whatever it was driving.
func (c *Client) disconnect(conn ports.Conn) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	running := c.running
	c.mu.Unlock()

	_ = conn.Close()
	if !current {
		return
	}

	if running {
		c.engine.Cancel()
	}
	for _, h := range c.hooks {
		if h.OnConnected != nil {
			h.OnConnected(false)
		}
	}
	if !c.isClosing() {
		c.setState(domain.StateDisconnected)
	}
}
