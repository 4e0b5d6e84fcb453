package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/botlink/pkg/ports"
	"github.com/aretw0/botlink/pkg/protocol"
)

// ConnContractTest verifies that two ends of a transport exchange messages faithfully.
// client is the robot side; server is whatever the adapter test uses as its peer.
// Conversation ids only travel server to client, since the binary framing drops them on the way up.
func ConnContractTest(t *testing.T, client, server ports.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 1. Server to client
	t.Run("Receive", func(t *testing.T) {
		sent := protocol.New(protocol.DownloadProgram, 42).With("user", "alice").With("program", "demo")
		if err := server.Send(ctx, sent); err != nil {
			t.Fatalf("server send failed: %v", err)
		}

		got, err := client.Receive()
		if err != nil {
			t.Fatalf("client receive failed: %v", err)
		}
		if got.Type != sent.Type || got.ConversationID != sent.ConversationID {
			t.Errorf("header mismatch: got %s, want %s", got, sent)
		}
		for k, v := range sent.Values {
			if got.Values[k] != v {
				t.Errorf("value %s mismatch: got %q, want %q", k, got.Values[k], v)
			}
		}
	})

	// 2. Client to server, in order
	t.Run("Send", func(t *testing.T) {
		states := []string{"Initialising", "Running", "Waiting"}
		for _, s := range states {
			if err := client.Send(ctx, protocol.New(protocol.RobotStateUpdate, 0).With("state", s)); err != nil {
				t.Fatalf("client send failed: %v", err)
			}
		}
		for _, want := range states {
			got, err := server.Receive()
			if err != nil {
				t.Fatalf("server receive failed: %v", err)
			}
			if got.Type != protocol.RobotStateUpdate || got.Value("state") != want {
				t.Errorf("got %s, want state %q", got, want)
			}
		}
	})

	// 3. Close unblocks the peer
	t.Run("Close", func(t *testing.T) {
		if err := client.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if _, err := server.Receive(); err == nil {
			t.Error("expected receive error after peer closed")
		}
	})
}
