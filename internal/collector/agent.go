package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

// Agent receives raw screen and heartbeat messages and stores them in Redis
type Agent struct {
	mqtt      mqtt.Client
	processor *Processor
	storage   *Storage
	cfg       *config.Config
	logger    *slog.Logger

	onStored []func(subject string)
}

// NewAgent creates a new collector agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, cfg *config.Config, logger *slog.Logger) *Agent {
	logger = logger.With("component", "collector")

	return &Agent{
		mqtt:      mqttClient,
		processor: NewProcessor(logger),
		storage:   NewStorage(redisClient, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// OnStored registers fn to be called with the subject of every event or
// heartbeat after it has been stored
func (a *Agent) OnStored(fn func(subject string)) *Agent {
	a.onStored = append(a.onStored, fn)
	return a
}

// Start subscribes to the raw topics. The MQTT and Redis connections are
// owned by the caller and must already be established.
func (a *Agent) Start(ctx context.Context) error {
	topics := append(append([]string{}, a.cfg.ScreenTopics...), a.cfg.LivenessTopics...)

	subscribed := 0
	for _, topic := range topics {
		if err := a.mqtt.Subscribe(topic, 0, a.handleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			continue
		}
		subscribed++
	}
	if subscribed == 0 && len(topics) > 0 {
		return fmt.Errorf("failed to subscribe to any of %d collector topics", len(topics))
	}

	a.logger.Info("Collector started", "subscribed_topics", strings.Join(topics, ", "))
	return nil
}

// handleMessage processes incoming MQTT messages
func (a *Agent) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	deviceMsg, err := a.processor.ParseMessage(topic, payload)
	if err != nil {
		a.logger.Error("Failed to parse message", "topic", topic, "error", err)
		return
	}

	if err := a.storage.Store(context.Background(), deviceMsg, a.processor); err != nil {
		a.logger.Error("Failed to store device data",
			"kind", deviceMsg.Kind,
			"subject", deviceMsg.Subject,
			"error", err)
		return
	}

	for _, fn := range a.onStored {
		fn(deviceMsg.Subject)
	}

	a.logger.Debug("Device data stored",
		"kind", deviceMsg.Kind,
		"subject", deviceMsg.Subject,
		"timestamp", deviceMsg.Timestamp)
}
