// Package mqtttest provides an in-memory mqtt.Client for tests
package mqtttest

import (
	"context"
	"strings"
	"sync"

	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
)

// Published is a message recorded by Fake.Publish
type Published struct {
	Topic    string
	Retained bool
	Payload  []byte
}

// Fake records publishes and routes Deliver calls to matching subscribers
type Fake struct {
	mu            sync.Mutex
	connected     bool
	subscriptions map[string]mqtt.MessageHandler
	published     []Published

	// SubscribeErr, when set, fails every Subscribe call
	SubscribeErr error
}

// New creates a disconnected fake
func New() *Fake {
	return &Fake{subscriptions: make(map[string]mqtt.MessageHandler)}
}

var _ mqtt.Client = (*Fake)(nil)

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *Fake) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return f.SubscribeErr
	}
	f.subscriptions[topic] = handler
	return nil
}

func (f *Fake) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, Published{Topic: topic, Retained: retained, Payload: payload})
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Subscriptions returns the subscribed topic filters
func (f *Fake) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.subscriptions))
	for topic := range f.subscriptions {
		out = append(out, topic)
	}
	return out
}

// Published returns a copy of every published message
func (f *Fake) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Published(nil), f.published...)
}

// Deliver hands a message to every subscriber whose filter matches the topic
// and reports how many handlers ran
func (f *Fake) Deliver(topic string, payload []byte) int {
	f.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range f.subscriptions {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(&message{topic: topic, payload: payload})
	}
	return len(handlers)
}

// Match reports whether an MQTT topic filter with + and # wildcards matches the topic
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, part := range fp {
		if part == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if part != "+" && part != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

type message struct {
	topic   string
	payload []byte
}

func (m *message) Topic() string   { return m.topic }
func (m *message) Payload() []byte { return m.payload }
