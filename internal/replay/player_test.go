package replay

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-screentime/internal/collector"
	"github.com/saaga0h/jeeves-screentime/internal/source"
	"github.com/saaga0h/jeeves-screentime/internal/timebin"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt/mqtttest"
	"github.com/saaga0h/jeeves-screentime/pkg/redis/redistest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const dataset = `
name: replay
events:
  - {subject: u1, timestamp: 1800, on: true}
  - {subject: u1, timestamp: 1810, on: true}
  - {subject: u1, timestamp: 2200, on: false}
  - {subject: u1, timestamp: 3000, on: true}
  - {subject: u2, timestamp: 100, on: true}
  - {subject: u2, timestamp: 130, on: false}
liveness:
  - {subject: u1, timestamp: 500}
  - {subject: u1, timestamp: 1400}
  - {subject: u1, timestamp: 2300}
  - {subject: u1, timestamp: 3200}
  - {subject: u2, timestamp: 4100}
`

func TestPlay_PublishesInTimestampOrder(t *testing.T) {
	ds, err := source.LoadYAMLFromBytes([]byte(dataset))
	require.NoError(t, err)

	bus := mqtttest.New()
	n, err := NewPlayer(bus, 0, testLogger()).Play(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	published := bus.Published()
	require.Len(t, published, 11)
	assert.Equal(t, "automation/raw/screen/u2", published[0].Topic)
	assert.JSONEq(t, `{"data":{"state":"on","timestamp":100}}`, string(published[0].Payload))
	assert.Equal(t, "automation/raw/heartbeat/u1", published[2].Topic)

	last := int64(0)
	for _, p := range published {
		var msg struct {
			Data struct {
				Timestamp int64 `json:"timestamp"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(p.Payload, &msg))
		assert.GreaterOrEqual(t, msg.Data.Timestamp, last)
		last = msg.Data.Timestamp
	}
}

func TestPlay_CancelledContext(t *testing.T) {
	ds, err := source.LoadYAMLFromBytes([]byte(dataset))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bus := mqtttest.New()
	n, err := NewPlayer(bus, 0, testLogger()).Play(ctx, ds)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Empty(t, bus.Published())
}

// Replaying through the collector and reading back from Redis yields the
// same result as processing the dataset directly.
func TestReplay_RoundTripThroughCollector(t *testing.T) {
	ctx := context.Background()
	ds, err := source.LoadYAMLFromBytes([]byte(dataset))
	require.NoError(t, err)

	bus := mqtttest.New()
	store := redistest.New()
	require.NoError(t, collector.NewAgent(bus, store, config.NewConfig(), testLogger()).Start(ctx))

	_, err = NewPlayer(bus, 0, testLogger()).Play(ctx, ds)
	require.NoError(t, err)

	p := timebin.Params{BucketLength: 1000, GapThreshold: 1000, ShortSessionThreshold: 35, MaxSessionDuration: 7200, StudyStart: 0, StudyEnd: 4999}
	fromRedis := source.NewRedisSource(store, testLogger())
	fromFile := ds.Source()

	subjects, err := fromRedis.Subjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, subjects)

	for _, subject := range subjects {
		stored, err := fromRedis.Load(ctx, subject)
		require.NoError(t, err)
		original, err := fromFile.Load(ctx, subject)
		require.NoError(t, err)

		got, err := timebin.Process(stored, p)
		require.NoError(t, err)
		want, err := timebin.Process(original, p)
		require.NoError(t, err)
		assert.Equal(t, want, got, subject)
	}
}
