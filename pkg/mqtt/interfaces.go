package mqtt

import "context"

// Client is the broker connection shared by the collector, the process
// trigger and the replay player. The collector subscribes to the raw screen
// and heartbeat topics, the trigger to the process topic, and the runner
// publishes finished results per subject.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()

	// Subscribe registers handler for every message matching the topic
	// filter. Screentime subscriptions use QoS 0, so handlers never
	// acknowledge messages.
	Subscribe(topic string, qos byte, handler MessageHandler) error

	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// MessageHandler receives one raw event, heartbeat or trigger message
type MessageHandler func(Message)

// Message is a received payload and the topic it arrived on. For raw topics
// the last topic level is the subject id.
type Message interface {
	Topic() string
	Payload() []byte
}
