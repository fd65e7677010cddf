package sink

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/postgres"
)

// setupTestClient connects to the database named by the JEEVES_POSTGRES_*
// variables. Set JEEVES_POSTGRES_INTEGRATION=1 to run these tests.
func setupTestClient(t *testing.T) (postgres.Client, *config.Config) {
	if os.Getenv("JEEVES_POSTGRES_INTEGRATION") == "" {
		t.Skip("Integration test - requires PostgreSQL")
	}

	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.WriteAttempts = 1

	client := postgres.NewClient(cfg, testLogger())
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Disconnect() })
	return client, cfg
}

func TestPostgresSink_Integration(t *testing.T) {
	client, cfg := setupTestClient(t)
	ctx := context.Background()

	s := NewPostgresSink(client, cfg, testLogger())
	require.NoError(t, s.EnsureSchema(ctx))

	p := timebin.Params{BucketLength: 1000, GapThreshold: 1000, ShortSessionThreshold: 35, MaxSessionDuration: 7200, StudyStart: 0, StudyEnd: 4999}
	res, err := timebin.Process(timebin.SubjectInput{
		Subject: "it-subject",
		Events: []timebin.Event{
			{Subject: "it-subject", Timestamp: 1800, On: true},
			{Subject: "it-subject", Timestamp: 2200, On: false},
		},
		Liveness: []timebin.LivenessStamp{{Subject: "it-subject", Timestamp: 1000}, {Subject: "it-subject", Timestamp: 2500}, {Subject: "it-subject", Timestamp: 4000}},
	}, p)
	require.NoError(t, err)

	run := NewRun("integration", p)
	require.NoError(t, s.BeginRun(ctx, run))
	defer func() {
		_, _ = client.Exec(ctx, "DELETE FROM screentime_runs WHERE id = $1", run.ID)
	}()

	// Writing twice replaces the first copy.
	require.NoError(t, s.WriteResult(ctx, run.ID, res))
	require.NoError(t, s.WriteResult(ctx, run.ID, res))
	require.NoError(t, s.FinishRun(ctx, run.ID, 1, 0))

	rows, err := client.Query(ctx, "SELECT COUNT(*) FROM screentime_rows WHERE run_id = $1", run.ID)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var count int
	require.NoError(t, rows.Scan(&count))
	assert.Equal(t, len(res.Rows), count)
}
