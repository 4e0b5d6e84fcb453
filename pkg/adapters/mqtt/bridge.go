// Package mqtt drives robot hardware through an MQTT broker.
//
// Commands are published as JSON to <prefix>/command and each call blocks
// until the hardware daemon answers on <prefix>/complete with the same id.
// Hardware events (touch sensors, recognised speech) arrive on
// <prefix>/event/<name> and are forwarded as triggers.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/pkg/domain"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultPrefix  = "botlink"
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrTimeout is returned when the hardware does not complete a command in time.
	ErrTimeout = errors.New("hardware did not complete command")
	// ErrHardware wraps a failure reported by the hardware daemon.
	ErrHardware = errors.New("hardware error")
)

// Client is the part of mqtt.Client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// TriggerFunc receives hardware events.
type TriggerFunc func(ctx context.Context, name string, value any) error

// Command is published for every actuator call.
type Command struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Args   []any  `json:"args,omitempty"`
}

// Completion answers a Command.
type Completion struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Bridge implements ports.Actuator over MQTT.
type Bridge struct {
	client  Client
	prefix  string
	timeout time.Duration
	qos     byte
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Completion
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithPrefix sets the topic prefix.
func WithPrefix(prefix string) Option {
	return func(b *Bridge) {
		b.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithTimeout bounds how long a single command may take.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = d
	}
}

// WithQoS sets the quality of service for publishes and subscriptions.
func WithQoS(qos byte) Option {
	return func(b *Bridge) {
		b.qos = qos
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New creates a bridge over a connected client. Call Start before use.
func New(client Client, opts ...Option) *Bridge {
	b := &Bridge{
		client:  client,
		prefix:  DefaultPrefix,
		timeout: DefaultTimeout,
		qos:     1,
		logger:  logging.NewNop(),
		pending: make(map[string]chan Completion),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "mqtt")
	return b
}

func (b *Bridge) topic(parts ...string) string {
	return b.prefix + "/" + strings.Join(parts, "/")
}

// Start subscribes to completions and, when trigger is non-nil, to hardware events.
// Events are delivered on their own goroutine with ctx.
func (b *Bridge) Start(ctx context.Context, trigger TriggerFunc) error {
	if err := wait(b.client.Subscribe(b.topic("complete"), b.qos, b.onComplete), b.timeout); err != nil {
		return fmt.Errorf("subscribe completions: %w", err)
	}
	if trigger == nil {
		return nil
	}
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		name := strings.TrimPrefix(msg.Topic(), b.topic("event")+"/")
		value := eventValue(msg.Payload())
		b.logger.Debug("Hardware event", "event", name, "value", value)
		go func() {
			if err := trigger(ctx, name, value); err != nil {
				switch {
				case errors.Is(err, domain.ErrProgramRunning), errors.Is(err, domain.ErrTriggerNotRegistered):
					b.logger.Debug("Event ignored", "event", name, "reason", err)
				default:
					b.logger.Warn("Event trigger failed", "event", name, "error", err)
				}
			}
		}()
	}
	if err := wait(b.client.Subscribe(b.topic("event", "+"), b.qos, handler), b.timeout); err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	return nil
}

// Close unsubscribes and fails every pending command.
func (b *Bridge) Close() error {
	err := wait(b.client.Unsubscribe(b.topic("complete"), b.topic("event", "+")), b.timeout)

	b.mu.Lock()
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
	b.mu.Unlock()
	return err
}

// eventValue decodes {"value": x}, any other JSON, or falls back to the raw text.
func eventValue(payload []byte) any {
	if len(payload) == 0 {
		return nil
	}
	var wrapped struct {
		Value *any `json:"value"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Value != nil {
		return *wrapped.Value
	}
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		return v
	}
	return string(payload)
}

func (b *Bridge) onComplete(_ mqtt.Client, msg mqtt.Message) {
	var c Completion
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		b.logger.Warn("Malformed completion", "payload", string(msg.Payload()), "error", err)
		return
	}

	b.mu.Lock()
	ch, ok := b.pending[c.ID]
	delete(b.pending, c.ID)
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("Completion for unknown command", "id", c.ID)
		return
	}
	ch <- c
}

func (b *Bridge) call(ctx context.Context, action string, args ...any) (any, error) {
	cmd := Command{ID: uuid.NewString(), Action: action, Args: args}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	ch := make(chan Completion, 1)
	b.mu.Lock()
	b.pending[cmd.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
	}()

	b.logger.Debug("Command", "id", cmd.ID, "action", action, "args", args)
	if err := wait(b.client.Publish(b.topic("command"), b.qos, false, payload), b.timeout); err != nil {
		return nil, fmt.Errorf("publish %s: %w", action, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case c, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: bridge closed", action)
		}
		if c.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrHardware, action, c.Error)
		}
		return c.Value, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, action, b.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func wait(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}

// Say publishes a "say" command and waits for it to complete.
func (b *Bridge) Say(ctx context.Context, text string) error {
	_, err := b.call(ctx, "say", text)
	return err
}

// Walk moves the robot by forward and sideways metres.
func (b *Bridge) Walk(ctx context.Context, forward, sideways float64) error {
	_, err := b.call(ctx, "walk", forward, sideways)
	return err
}

// Turn rotates the robot in place.
func (b *Bridge) Turn(ctx context.Context, degrees float64) error {
	_, err := b.call(ctx, "turn", degrees)
	return err
}

// Stop halts any movement.
func (b *Bridge) Stop(ctx context.Context) error {
	_, err := b.call(ctx, "stop")
	return err
}

// Rest puts the robot into its resting posture.
func (b *Bridge) Rest(ctx context.Context) error {
	_, err := b.call(ctx, "rest")
	return err
}

// SetIndicator sets a named LED group to colour.
func (b *Bridge) SetIndicator(ctx context.Context, name, colour string) error {
	_, err := b.call(ctx, "indicator", name, colour)
	return err
}

// ReadSensor returns the value the hardware reports for name.
func (b *Bridge) ReadSensor(ctx context.Context, name string) (any, error) {
	return b.call(ctx, "sensor", name)
}

// Gesture plays a named gesture; args follow the name in the command.
func (b *Bridge) Gesture(ctx context.Context, name string, args ...any) error {
	_, err := b.call(ctx, "gesture", append([]any{name}, args...)...)
	return err
}
