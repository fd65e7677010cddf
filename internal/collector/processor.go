package collector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
)

// Message kinds carried on the raw topics
const (
	KindScreen    = "screen"
	KindHeartbeat = "heartbeat"
)

// Processor handles parsing of raw device messages
type Processor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a new message processor
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		logger: logger,
		now:    time.Now,
	}
}

// DeviceMessage is a parsed screen or heartbeat message
type DeviceMessage struct {
	Kind       string
	Subject    string
	Timestamp  int64 // epoch seconds
	On         bool  // screen messages only
	ReceivedAt int64 // unix nanoseconds
}

// StoredEvent is the sorted set member written for a screen event.
// ReceivedAt keeps members unique and orders events sharing a timestamp
// by arrival.
type StoredEvent struct {
	ReceivedAt int64 `json:"received_at"`
	Timestamp  int64 `json:"timestamp"`
	On         bool  `json:"on"`
}

// ParseMessage parses a raw MQTT message.
// Topic pattern: automation/raw/{screen|heartbeat}/{subject}
// Payload: {"data": {"state": "on", "timestamp": 1380585600}}
func (p *Processor) ParseMessage(topic string, payload []byte) (*DeviceMessage, error) {
	kind, subject, err := mqtt.ParseRawTopic(topic)
	if err != nil {
		p.logger.Warn("Invalid topic format", "topic", topic)
		return nil, err
	}
	if kind != KindScreen && kind != KindHeartbeat {
		return nil, fmt.Errorf("unsupported message kind %q on topic %s", kind, topic)
	}

	var rawData map[string]interface{}
	if err := json.Unmarshal(payload, &rawData); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	// Messages are wrapped in {"data": {...}}, fall back to the raw object
	data, ok := rawData["data"].(map[string]interface{})
	if !ok {
		data = rawData
	}

	now := p.now()
	msg := &DeviceMessage{
		Kind:       kind,
		Subject:    subject,
		Timestamp:  now.Unix(),
		ReceivedAt: now.UnixNano(),
	}

	if v, ok := data["timestamp"]; ok {
		ts, err := parseTimestamp(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", timebin.ErrInvalidInput, err)
		}
		msg.Timestamp = ts
	}

	if kind == KindScreen {
		v, ok := data["state"]
		if !ok {
			return nil, fmt.Errorf("%w: screen message without state", timebin.ErrInvalidInput)
		}
		on, err := ParseState(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", timebin.ErrInvalidInput, err)
		}
		msg.On = on
	}

	p.logger.Debug("Parsed device message",
		"kind", kind,
		"subject", subject,
		"timestamp", msg.Timestamp)

	return msg, nil
}

// ParseState accepts the on/off encodings devices send: booleans, 0/1 and
// the strings on/off, true/false, 1/0
func ParseState(v interface{}) (bool, error) {
	switch s := v.(type) {
	case bool:
		return s, nil
	case float64:
		switch s {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("state %v is not an on/off value", v)
}

// parseTimestamp accepts whole epoch seconds as a number or numeric string, or
// RFC3339. Fractional epoch numbers are rejected. RFC3339 sub-second digits
// are truncated to the whole second.
func parseTimestamp(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		if math.IsInf(t, 0) || math.Trunc(t) != t {
			return 0, fmt.Errorf("timestamp %v is not a whole number of epoch seconds", t)
		}
		return int64(t), nil
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return 0, fmt.Errorf("timestamp %q is neither epoch seconds nor RFC3339", t)
		}
		return parsed.Unix(), nil
	}
	return 0, fmt.Errorf("timestamp %v has unsupported type %T", v, v)
}

// BuildStoredEvent converts a screen message to its sorted set member
func (p *Processor) BuildStoredEvent(msg *DeviceMessage) ([]byte, error) {
	data, err := json.Marshal(StoredEvent{
		ReceivedAt: msg.ReceivedAt,
		Timestamp:  msg.Timestamp,
		On:         msg.On,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal screen event: %w", err)
	}
	return data, nil
}
