// Package replay publishes recorded datasets onto the raw device topics.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/saaga0h/jeeves-screentime/internal/source"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
)

// Player publishes dataset records in timestamp order.
// Screen events become {"data": {"state": "on|off", "timestamp": ts}} on
// automation/raw/screen/{subject}, liveness stamps become heartbeats.
type Player struct {
	mqtt   mqtt.Client
	pause  time.Duration
	logger *slog.Logger
}

// NewPlayer creates a player that waits pause between messages
func NewPlayer(client mqtt.Client, pause time.Duration, logger *slog.Logger) *Player {
	return &Player{
		mqtt:   client,
		pause:  pause,
		logger: logger.With("component", "replay"),
	}
}

type record struct {
	topic     string
	timestamp int64
	payload   map[string]interface{}
}

// Play publishes every record of the dataset and returns how many were sent
func (p *Player) Play(ctx context.Context, ds *source.Dataset) (int, error) {
	records := make([]record, 0, len(ds.Events)+len(ds.Liveness))
	for _, e := range ds.Events {
		state := "off"
		if e.On {
			state = "on"
		}
		records = append(records, record{
			topic:     mqtt.RawScreenTopic(e.Subject),
			timestamp: e.Timestamp,
			payload:   map[string]interface{}{"data": map[string]interface{}{"state": state, "timestamp": e.Timestamp}},
		})
	}
	for _, l := range ds.Liveness {
		records = append(records, record{
			topic:     mqtt.RawHeartbeatTopic(l.Subject),
			timestamp: l.Timestamp,
			payload:   map[string]interface{}{"data": map[string]interface{}{"timestamp": l.Timestamp}},
		})
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].timestamp < records[j].timestamp })

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := mqtt.PublishJSON(p.mqtt, r.topic, r.payload); err != nil {
			return i, fmt.Errorf("failed to publish record %d to %s: %w", i, r.topic, err)
		}
		p.logger.Debug("Published record", "topic", r.topic, "timestamp", r.timestamp)

		if p.pause > 0 {
			select {
			case <-ctx.Done():
				return i + 1, ctx.Err()
			case <-time.After(p.pause):
			}
		}
	}

	p.logger.Info("Dataset replayed", "name", ds.Name, "records", len(records))
	return len(records), nil
}
