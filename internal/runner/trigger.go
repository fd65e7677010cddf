package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
)

// TriggerMessage is the payload of a process trigger. An empty subject
// list processes every known subject.
type TriggerMessage struct {
	Subjects []string `json:"subjects"`
}

// Trigger starts runs when a message arrives on the process topic.
// Only one run is active at a time, triggers arriving meanwhile are dropped.
type Trigger struct {
	runner *Runner
	mqtt   mqtt.Client
	logger *slog.Logger

	ctx     context.Context
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewTrigger creates a trigger for the runner
func NewTrigger(runner *Runner, mqttClient mqtt.Client, logger *slog.Logger) *Trigger {
	return &Trigger{
		runner: runner,
		mqtt:   mqttClient,
		logger: logger.With("component", "trigger"),
	}
}

// Start subscribes to the process topic. Runs use ctx, so cancelling it
// aborts an active run.
func (t *Trigger) Start(ctx context.Context) error {
	t.ctx = ctx
	if err := t.mqtt.Subscribe(mqtt.TopicProcessTrigger, 0, t.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicProcessTrigger, err)
	}
	t.logger.Info("Listening for process triggers", "topic", mqtt.TopicProcessTrigger)
	return nil
}

// Wait blocks until the active run, if any, has finished
func (t *Trigger) Wait() {
	t.wg.Wait()
}

func (t *Trigger) handleMessage(msg mqtt.Message) {
	var trigger TriggerMessage
	if payload := msg.Payload(); len(payload) > 0 {
		if err := json.Unmarshal(payload, &trigger); err != nil {
			t.logger.Error("Failed to parse process trigger", "error", err)
			return
		}
	}

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		t.logger.Warn("Run already in progress, ignoring trigger", "subjects", len(trigger.Subjects))
		return
	}
	t.running = true
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
			t.wg.Done()
		}()

		if _, err := t.runner.Run(t.ctx, trigger.Subjects...); err != nil {
			t.logger.Error("Triggered run failed", "error", err)
		}
	}()
}
