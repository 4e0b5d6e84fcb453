package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/protocol"
	"github.com/aretw0/botlink/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "botlink"

// Metrics holds the client's collectors.
type Metrics struct {
	registry *prometheus.Registry

	received   *prometheus.CounterVec
	sent       *prometheus.CounterVec
	programs   *prometheus.CounterVec
	reconnects prometheus.Counter
	backoff    prometheus.Histogram
	connected  prometheus.Gauge
	state      *prometheus.GaugeVec
	calls      *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Protocol messages received, by type.",
		}, []string{"type"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Protocol messages sent, by type.",
		}, []string{"type"}),
		programs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "programs_total",
			Help:      "Program start requests, by outcome.",
		}, []string{"outcome"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts after a lost or failed connection.",
		}),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconnect_backoff_seconds",
			Help:      "Delay before each reconnect attempt.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 60},
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a server connection is open.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current robot state, 0 otherwise.",
		}, []string{"state"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_calls_total",
			Help:      "Interpreter function invocations, by name.",
		}, []string{"function"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interpreter_errors_total",
			Help:      "Recoverable interpreter errors, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.received, m.sent, m.programs, m.reconnects, m.backoff,
		m.connected, m.state, m.calls, m.errors)
	return m
}

// Registry returns the registry the collectors are on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var states = []domain.RobotState{
	domain.StateDisconnected, domain.StateConnecting, domain.StateAuthenticating,
	domain.StateWaiting, domain.StateDownloading, domain.StatePrepared,
	domain.StateInitialising, domain.StateRunning, domain.StateCancelling, domain.StateClosed,
}

// Hooks records interpreter activity.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnFunctionStart: func(_ context.Context, e *domain.FunctionEvent) {
			m.calls.WithLabelValues(e.Function).Inc()
		},
		OnError: func(_ context.Context, e *domain.ErrorEvent) {
			m.errors.WithLabelValues(ErrorKind(e.Err)).Inc()
		},
	}
}

// SessionHooks records protocol and connection activity.
func (m *Metrics) SessionHooks() session.Hooks {
	return session.Hooks{
		OnReceive: func(msg protocol.Message) {
			m.received.WithLabelValues(msg.Type.String()).Inc()
		},
		OnSend: func(msg protocol.Message) {
			m.sent.WithLabelValues(msg.Type.String()).Inc()
		},
		OnState: func(s domain.RobotState) {
			for _, candidate := range states {
				v := 0.0
				if candidate == s {
					v = 1
				}
				m.state.WithLabelValues(candidate.String()).Set(v)
			}
		},
		OnOutcome: func(o domain.Outcome) {
			m.programs.WithLabelValues(string(o)).Inc()
		},
		OnReconnect: func(_ int, delay time.Duration) {
			m.reconnects.Inc()
			m.backoff.Observe(delay.Seconds())
		},
		OnConnected: func(connected bool) {
			if connected {
				m.connected.Set(1)
			} else {
				m.connected.Set(0)
			}
		},
	}
}

var kinds = []struct {
	err  error
	name string
}{
	{domain.ErrUnknownFunction, "unknown_function"},
	{domain.ErrFunctionNotAllowedHere, "not_allowed_here"},
	{domain.ErrUnknownVariable, "unknown_variable"},
	{domain.ErrDuplicateFunction, "duplicate_function"},
	{domain.ErrUnknownNodeType, "unknown_node_type"},
	{domain.ErrUnknownExpression, "unknown_expression"},
	{domain.ErrMissingArgument, "missing_argument"},
	{domain.ErrInvalidValue, "invalid_value"},
}

// ErrorKind maps an interpreter error to a metric label.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
