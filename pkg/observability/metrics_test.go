package observability_test

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/observability"
	"github.com/aretw0/botlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrape renders the registry the way Prometheus would see it.
func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	h := m.Hooks()
	ctx := context.Background()

	h.OnFunctionStart(ctx, &domain.FunctionEvent{Function: "say"})
	h.OnFunctionStart(ctx, &domain.FunctionEvent{Function: "say"})
	h.OnError(ctx, &domain.ErrorEvent{Err: fmt.Errorf("%w: fly", domain.ErrUnknownFunction)})

	body := scrape(t, m)
	assert.Contains(t, body, `botlink_function_calls_total{function="say"} 2`)
	assert.Contains(t, body, `botlink_interpreter_errors_total{kind="unknown_function"} 1`)
}

func TestMetrics_SessionHooks(t *testing.T) {
	m := observability.NewMetrics()
	h := m.SessionHooks()

	h.OnReceive(protocol.New(protocol.StartProgram, 1))
	h.OnSend(protocol.New(protocol.RobotStateUpdate, 1))
	h.OnSend(protocol.New(protocol.RobotStateUpdate, 1))
	h.OnOutcome(domain.OutcomeStopped)
	h.OnReconnect(1, 2*time.Second)
	h.OnConnected(true)
	h.OnState(domain.StateRunning)

	body := scrape(t, m)
	assert.Contains(t, body, `botlink_messages_received_total{type="StartProgram"} 1`)
	assert.Contains(t, body, `botlink_messages_sent_total{type="RobotStateUpdate"} 2`)
	assert.Contains(t, body, `botlink_programs_total{outcome="stopped"} 1`)
	assert.Contains(t, body, `botlink_reconnect_attempts_total 1`)
	assert.Contains(t, body, `botlink_reconnect_backoff_seconds_count 1`)
	assert.Contains(t, body, `botlink_connected 1`)
	assert.Contains(t, body, `botlink_state{state="Running"} 1`)
	assert.Contains(t, body, `botlink_state{state="Waiting"} 0`)

	h.OnConnected(false)
	assert.Contains(t, scrape(t, m), `botlink_connected 0`)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "unknown_variable", observability.ErrorKind(fmt.Errorf("%w: x", domain.ErrUnknownVariable)))
	assert.Equal(t, "invalid_value", observability.ErrorKind(domain.ErrInvalidValue))
	assert.Equal(t, "other", observability.ErrorKind(io.EOF))
}
