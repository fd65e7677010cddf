package collector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt/mqtttest"
	"github.com/saaga0h/jeeves-screentime/pkg/redis"
	"github.com/saaga0h/jeeves-screentime/pkg/redis/redistest"
)

func TestAgent_StoresDeviceMessages(t *testing.T) {
	ctx := context.Background()
	bus := mqtttest.New()
	store := redistest.New()

	agent := NewAgent(bus, store, config.NewConfig(), testLogger())
	require.NoError(t, agent.Start(ctx))
	assert.ElementsMatch(t, []string{"automation/raw/screen/+", "automation/raw/heartbeat/+"}, bus.Subscriptions())

	assert.Equal(t, 1, bus.Deliver("automation/raw/screen/u17", []byte(`{"data":{"state":"on","timestamp":100}}`)))
	bus.Deliver("automation/raw/screen/u17", []byte(`{"data":{"state":"off","timestamp":130}}`))
	bus.Deliver("automation/raw/heartbeat/u17", []byte(`{"data":{"timestamp":90}}`))
	bus.Deliver("automation/raw/heartbeat/u17", []byte(`{"data":{"timestamp":90}}`))
	bus.Deliver("automation/raw/screen/u17", []byte(`{"data":{"state":"maybe","timestamp":140}}`))

	events, err := store.ZRangeByScoreWithScores(ctx, redis.ScreenEventsKey("u17"), math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, float64(100), events[0].Score)
	assert.Equal(t, float64(130), events[1].Score)

	count, err := store.ZCard(ctx, redis.LivenessKey("u17"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "duplicate heartbeats collapse")

	subjects, err := store.SMembers(ctx, redis.SubjectsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"u17"}, subjects)

	meta, err := store.HGetAll(ctx, redis.SubjectMetaKey("u17"))
	require.NoError(t, err)
	assert.Equal(t, "130", meta["lastEventTime"])
	assert.Equal(t, "90", meta["lastHeartbeatTime"])
}

func TestAgent_StartFailsWithoutSubscriptions(t *testing.T) {
	bus := mqtttest.New()
	bus.SubscribeErr = errors.New("not authorized")

	agent := NewAgent(bus, redistest.New(), config.NewConfig(), testLogger())
	assert.Error(t, agent.Start(context.Background()))
}

func TestAgent_OnStored(t *testing.T) {
	bus := mqtttest.New()

	var stored []string
	agent := NewAgent(bus, redistest.New(), config.NewConfig(), testLogger()).
		OnStored(func(subject string) { stored = append(stored, subject) })
	require.NoError(t, agent.Start(context.Background()))

	bus.Deliver("automation/raw/screen/u17", []byte(`{"data":{"state":"on","timestamp":100}}`))
	bus.Deliver("automation/raw/heartbeat/u18", []byte(`{"data":{"timestamp":90}}`))
	bus.Deliver("automation/raw/screen/u17", []byte(`{"data":{"state":"maybe","timestamp":140}}`))

	assert.Equal(t, []string{"u17", "u18"}, stored, "rejected messages do not notify")
}
