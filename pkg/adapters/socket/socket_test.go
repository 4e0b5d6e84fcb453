package socket_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/aretw0/botlink/pkg/adapters/socket"
	"github.com/aretw0/botlink/pkg/ports/tests"
	"github.com/aretw0/botlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (net.Listener, <-chan *socket.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan *socket.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- socket.NewConn(c, protocol.NewServerFramer(), nil)
	}()
	return ln, accepted
}

func TestSocket_Contract(t *testing.T) {
	ln, accepted := listen(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := socket.NewDialer().Dial(ctx, ln.Addr().String())
	require.NoError(t, err)

	server := <-accepted
	defer server.Close()

	tests.ConnContractTest(t, client, server)
}

func TestSocket_PortOverride(t *testing.T) {
	ln, accepted := listen(t)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := socket.NewDialer(socket.WithPort(p)).Dial(ctx, "127.0.0.1:9")
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	require.NoError(t, server.Send(ctx, protocol.New(protocol.Authenticated, 3)))
	msg, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.Authenticated, msg.Type)
	assert.Equal(t, int64(3), msg.ConversationID)
}

func TestDialer_Target(t *testing.T) {
	assert.Equal(t, "robots.local:5000", socket.NewDialer().Target("robots.local"))
	assert.Equal(t, "robots.local:6000", socket.NewDialer().Target("robots.local:6000"))
	assert.Equal(t, "robots.local:7000", socket.NewDialer(socket.WithPort(7000)).Target("robots.local:6000"))
}
