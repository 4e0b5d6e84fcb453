package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/ports"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Actuator = (*Bridge)(nil)

type token struct{ err error }

func (t token) Wait() bool                     { return true }
func (t token) WaitTimeout(time.Duration) bool { return true }
func (t token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t token) Error() error { return t.err }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

// broker is an in-process stand-in for an MQTT client and broker.
// Topic filters support a trailing "+" only.
type broker struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published chan message
}

func newBroker() *broker {
	return &broker{
		handlers:  make(map[string]mqtt.MessageHandler),
		published: make(chan message, 16),
	}
}

func (f *broker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.published <- message{topic: topic, payload: payload.([]byte)}
	return token{}
}

func (f *broker) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
	return token{}
}

func (f *broker) Unsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return token{}
}

func (f *broker) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range f.handlers {
		if filter == topic || (strings.HasSuffix(filter, "/+") && strings.HasPrefix(topic, strings.TrimSuffix(filter, "+"))) {
			handler = h
		}
	}
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(nil, message{topic: topic, payload: payload})
	return true
}

func (f *broker) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

// answer completes the next published command with c (its ID is filled in).
func (f *broker) answer(t *testing.T, c Completion) Command {
	t.Helper()
	var msg message
	select {
	case msg = <-f.published:
	case <-time.After(2 * time.Second):
		t.Fatal("no command published")
	}
	var cmd Command
	require.NoError(t, json.Unmarshal(msg.payload, &cmd))
	c.ID = cmd.ID
	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.True(t, f.deliver("robot/complete", data))
	return cmd
}

func start(t *testing.T, f *broker, trigger TriggerFunc, opts ...Option) *Bridge {
	t.Helper()
	b := New(f, append([]Option{WithPrefix("robot/"), WithTimeout(2 * time.Second)}, opts...)...)
	require.NoError(t, b.Start(context.Background(), trigger))
	return b
}

func TestBridge_Commands(t *testing.T) {
	f := newBroker()
	b := start(t, f, nil)

	tests := []struct {
		name   string
		call   func() error
		action string
		args   []any
	}{
		{"Say", func() error { return b.Say(context.Background(), "hello") }, "say", []any{"hello"}},
		{"Walk", func() error { return b.Walk(context.Background(), 1.5, -2) }, "walk", []any{1.5, -2.0}},
		{"Turn", func() error { return b.Turn(context.Background(), 90) }, "turn", []any{90.0}},
		{"Stop", func() error { return b.Stop(context.Background()) }, "stop", nil},
		{"Rest", func() error { return b.Rest(context.Background()) }, "rest", nil},
		{"Indicator", func() error { return b.SetIndicator(context.Background(), "eyes", "#FF0000") }, "indicator", []any{"eyes", "#FF0000"}},
		{"Gesture", func() error { return b.Gesture(context.Background(), "wave", "left") }, "gesture", []any{"wave", "left"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() { done <- tt.call() }()

			cmd := f.answer(t, Completion{})
			assert.Equal(t, tt.action, cmd.Action)
			assert.Equal(t, tt.args, cmd.Args)
			assert.NotEmpty(t, cmd.ID)
			require.NoError(t, <-done)
		})
	}
}

func TestBridge_ReadSensor(t *testing.T) {
	f := newBroker()
	b := start(t, f, nil)

	done := make(chan any, 1)
	go func() {
		v, err := b.ReadSensor(context.Background(), "sonar")
		assert.NoError(t, err)
		done <- v
	}()

	cmd := f.answer(t, Completion{Value: 0.42})
	assert.Equal(t, "sensor", cmd.Action)
	assert.Equal(t, 0.42, <-done)
}

func TestBridge_HardwareError(t *testing.T) {
	f := newBroker()
	b := start(t, f, nil)

	done := make(chan error, 1)
	go func() { done <- b.Say(context.Background(), "hi") }()

	f.answer(t, Completion{Error: "speaker unplugged"})
	err := <-done
	assert.ErrorIs(t, err, ErrHardware)
	assert.Contains(t, err.Error(), "speaker unplugged")
}

func TestBridge_Timeout(t *testing.T) {
	f := newBroker()
	b := New(f, WithTimeout(20*time.Millisecond))
	require.NoError(t, b.Start(context.Background(), nil))

	err := b.Rest(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBridge_ContextCancel(t *testing.T) {
	f := newBroker()
	b := start(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Walk(ctx, 1, 0) }()

	<-f.published
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestBridge_UnknownCompletionIgnored(t *testing.T) {
	f := newBroker()
	start(t, f, nil)

	assert.True(t, f.deliver("robot/complete", []byte(`{"id":"nobody"}`)))
	assert.True(t, f.deliver("robot/complete", []byte(`not json`)))
}

func TestBridge_Events(t *testing.T) {
	type fired struct {
		name  string
		value any
	}
	events := make(chan fired, 4)
	trigger := func(ctx context.Context, name string, value any) error {
		events <- fired{name, value}
		if name == "busy" {
			return domain.ErrProgramRunning
		}
		return nil
	}

	f := newBroker()
	start(t, f, trigger)
	assert.True(t, f.subscribed("robot/event/+"))

	tests := []struct {
		topic   string
		payload string
		want    fired
	}{
		{"robot/event/frontButton", `{"value":true}`, fired{"frontButton", true}},
		{"robot/event/heard", `"hello robot"`, fired{"heard", "hello robot"}},
		{"robot/event/heard", `plain words`, fired{"heard", "plain words"}},
		{"robot/event/busy", ``, fired{"busy", nil}},
	}
	for _, tt := range tests {
		require.True(t, f.deliver(tt.topic, []byte(tt.payload)))
		select {
		case got := <-events:
			assert.Equal(t, tt.want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %s not forwarded", tt.topic)
		}
	}
}

func TestBridge_CloseFailsPending(t *testing.T) {
	f := newBroker()
	b := start(t, f, func(context.Context, string, any) error { return nil })

	done := make(chan error, 1)
	go func() { done <- b.Say(context.Background(), "bye") }()
	<-f.published

	require.NoError(t, b.Close())
	err := <-done
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.False(t, f.subscribed("robot/complete"))
	assert.False(t, f.subscribed("robot/event/+"))
}
