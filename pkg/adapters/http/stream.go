package http

import (
	"encoding/json"
	"sync"

	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/protocol"
	"github.com/aretw0/botlink/pkg/session"
)

// StreamManager fans events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{subscribers: make(map[chan<- string]struct{})}
}

// Subscribe returns a channel of events and a function that ends the subscription.
func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	sm.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Broadcast delivers msg to every subscriber; slow subscribers drop it.
func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribers counts the open subscriptions.
func (sm *StreamManager) Subscribers() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

type event struct {
	Direction string            `json:"direction"`
	Type      string            `json:"type"`
	Code      int               `json:"code,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
}

func (sm *StreamManager) publish(e event) {
	data, err := json.Marshal(e)
	if err == nil {
		sm.Broadcast(string(data))
	}
}

// SessionHooks broadcasts every protocol message the session sends or receives,
// and every state change, including the ones never announced to the server.
func (sm *StreamManager) SessionHooks() session.Hooks {
	message := func(direction string, msg protocol.Message) {
		sm.publish(event{
			Direction: direction,
			Type:      msg.Type.String(),
			Code:      int(msg.Type),
			Values:    msg.Values,
		})
	}
	return session.Hooks{
		OnReceive: func(msg protocol.Message) { message("in", msg) },
		OnSend:    func(msg protocol.Message) { message("out", msg) },
		OnState: func(state domain.RobotState) {
			sm.publish(event{
				Direction: "local",
				Type:      "State",
				Values:    map[string]string{"state": state.String()},
			})
		},
	}
}
