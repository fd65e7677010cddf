package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
)

// mqttClient implements the Client interface using the Paho MQTT client
type mqttClient struct {
	client pahomqtt.Client
	cfg    *config.Config
	logger *slog.Logger

	mu            sync.Mutex
	subscriptions map[string]subscription
}

type subscription struct {
	qos     byte
	handler pahomqtt.MessageHandler
}

// NewClient creates a new MQTT client with the given configuration.
// Subscriptions are restored whenever the connection is re-established.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	m := &mqttClient{
		cfg:           cfg,
		logger:        logger,
		subscriptions: make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTAddress())

	// Set client ID (auto-generate if not provided)
	if cfg.MQTTClientID != "" {
		opts.SetClientID(cfg.MQTTClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("%s-%d", cfg.ServiceName, time.Now().Unix()))
	}

	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	// Clean sessions drop broker-side subscriptions, so OnConnect restores them
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("Connected to MQTT broker", "broker", cfg.MQTTAddress())
		m.resubscribe(c)
	}

	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}

	m.client = pahomqtt.NewClient(opts)
	return m
}

// Connect establishes a connection to the MQTT broker
func (m *mqttClient) Connect(ctx context.Context) error {
	m.logger.Info("Connecting to MQTT broker", "broker", m.cfg.MQTTAddress())

	token := m.client.Connect()

	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

// Disconnect closes the connection to the MQTT broker
func (m *mqttClient) Disconnect() {
	m.logger.Info("Disconnecting from MQTT broker")
	m.client.Disconnect(250)
}

// Subscribe subscribes to a topic with the given QoS and handler
func (m *mqttClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	m.logger.Info("Subscribing to MQTT topic", "topic", topic, "qos", qos)

	pahoHandler := func(client pahomqtt.Client, msg pahomqtt.Message) {
		handler(&mqttMessage{msg: msg})
	}

	m.mu.Lock()
	m.subscriptions[topic] = subscription{qos: qos, handler: pahoHandler}
	m.mu.Unlock()

	token := m.client.Subscribe(topic, qos, pahoHandler)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	m.logger.Info("Successfully subscribed to topic", "topic", topic)
	return nil
}

func (m *mqttClient) resubscribe(c pahomqtt.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for topic, sub := range m.subscriptions {
		token := c.Subscribe(topic, sub.qos, sub.handler)
		token.Wait()
		if token.Error() != nil {
			m.logger.Error("Failed to restore subscription", "topic", topic, "error", token.Error())
			continue
		}
		m.logger.Debug("Restored subscription", "topic", topic)
	}
}

// Publish publishes a message to a topic
func (m *mqttClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	m.logger.Debug("Published message", "topic", topic, "size", len(payload))
	return nil
}

// IsConnected returns whether the client is currently connected
func (m *mqttClient) IsConnected() bool {
	return m.client.IsConnected()
}

// PublishJSON marshals v and publishes it with QoS 0, not retained
func PublishJSON(c Client, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}
	return c.Publish(topic, 0, false, payload)
}

// mqttMessage wraps a Paho MQTT message to implement our Message interface
type mqttMessage struct {
	msg pahomqtt.Message
}

func (m *mqttMessage) Topic() string {
	return m.msg.Topic()
}

func (m *mqttMessage) Payload() []byte {
	return m.msg.Payload()
}
