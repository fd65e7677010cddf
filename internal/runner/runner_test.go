package runner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-screentime/internal/sink"
	"github.com/saaga0h/jeeves-screentime/internal/source"
	"github.com/saaga0h/jeeves-screentime/internal/timebin"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt/mqtttest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testParams = timebin.Params{
	BucketLength:          1000,
	GapThreshold:          1000,
	ShortSessionThreshold: 35,
	MaxSessionDuration:    7200,
	StudyStart:            0,
	StudyEnd:              4999,
}

func subjectInput(subject string) timebin.SubjectInput {
	in := timebin.SubjectInput{
		Subject: subject,
		Events: []timebin.Event{
			{Subject: subject, Timestamp: 1800, On: true},
			{Subject: subject, Timestamp: 2200, On: false},
		},
	}
	for _, ts := range []int64{500, 1400, 2300, 3200, 4100} {
		in.Liveness = append(in.Liveness, timebin.LivenessStamp{Subject: subject, Timestamp: ts})
	}
	return in
}

type recordingSink struct {
	mu       sync.Mutex
	runs     []*sink.Run
	written  map[string]uuid.UUID
	failFor  map[string]bool
	finished []int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{written: make(map[string]uuid.UUID), failFor: make(map[string]bool)}
}

func (s *recordingSink) BeginRun(ctx context.Context, run *sink.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *recordingSink) WriteResult(ctx context.Context, runID uuid.UUID, res *timebin.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[res.Subject] {
		return errors.New("disk full")
	}
	s.written[res.Subject] = runID
	return nil
}

func (s *recordingSink) FinishRun(ctx context.Context, runID uuid.UUID, subjects, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, subjects, failed)
	return nil
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Workers = 2
	return cfg
}

func TestRunner_Run(t *testing.T) {
	mixed := subjectInput("mixed")
	mixed.Events[0].Subject = "someone-else"

	src := source.NewMemorySource([]timebin.SubjectInput{
		subjectInput("u1"),
		subjectInput("u2"),
		subjectInput("flaky"),
		mixed,
	})
	snk := newRecordingSink()
	snk.failFor["flaky"] = true
	bus := mqtttest.New()
	cache := NewResultCache(10, time.Hour, testLogger())

	r := NewRunner(src, snk, "memory", testParams, testConfig(), testLogger()).
		WithPublisher(bus).
		WithCache(cache)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, "u1", summary.Results[0].Subject)
	assert.Equal(t, "u2", summary.Results[1].Subject)

	require.Len(t, summary.Failures, 2)
	assert.Equal(t, "flaky", summary.Failures[0].Subject)
	assert.Equal(t, "mixed", summary.Failures[1].Subject)
	assert.ErrorIs(t, summary.Failures[1].Err, timebin.ErrInvalidInput)

	require.Len(t, snk.runs, 1)
	assert.Equal(t, summary.RunID, snk.runs[0].ID)
	assert.Equal(t, "memory", snk.runs[0].Source)
	assert.Equal(t, map[string]uuid.UUID{"u1": summary.RunID, "u2": summary.RunID}, snk.written)
	assert.Equal(t, []int{4, 2}, snk.finished)

	// Failed subjects are neither cached nor announced.
	_, ok := cache.Get("flaky")
	assert.False(t, ok)
	cached, ok := cache.Get("u1")
	require.True(t, ok)
	assert.Equal(t, summary.Results[0], cached)

	published := bus.Published()
	require.Len(t, published, 2)
	topics := []string{published[0].Topic, published[1].Topic}
	assert.ElementsMatch(t, []string{"automation/screentime/processed/u1", "automation/screentime/processed/u2"}, topics)

	var msg ProcessedMessage
	require.NoError(t, json.Unmarshal(published[0].Payload, &msg))
	assert.Equal(t, summary.RunID.String(), msg.RunID)
	assert.Equal(t, 5, msg.Rows)
	assert.Equal(t, 1, msg.Sessions)
}

func TestRunner_ResultMatchesPipeline(t *testing.T) {
	src := source.NewMemorySource([]timebin.SubjectInput{subjectInput("u1")})
	r := NewRunner(src, nil, "memory", testParams, testConfig(), testLogger())

	summary, err := r.Run(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)

	want, err := timebin.Process(subjectInput("u1"), testParams)
	require.NoError(t, err)
	assert.Equal(t, want, summary.Results[0])

	// 400s session split 200/200 across buckets 1 and 2
	rows := summary.Results[0].Rows
	require.Len(t, rows, 5)
	assert.Equal(t, int64(20), rows[1].Screentime)
	assert.Equal(t, int64(20), rows[2].Screentime)
}

func TestRunner_UnknownSubjectFails(t *testing.T) {
	r := NewRunner(source.NewMemorySource(nil), nil, "memory", testParams, testConfig(), testLogger())

	summary, err := r.Run(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "ghost", summary.Failures[0].Subject)
}

type blockingSource struct{}

func (blockingSource) Subjects(ctx context.Context) ([]string, error) {
	return []string{"slow"}, nil
}

func (blockingSource) Load(ctx context.Context, subject string) (timebin.SubjectInput, error) {
	<-ctx.Done()
	return timebin.SubjectInput{}, ctx.Err()
}

func TestRunner_SubjectTimeout(t *testing.T) {
	r := NewRunner(blockingSource{}, nil, "blocking", testParams, testConfig(), testLogger())
	r.timeout = 10 * time.Millisecond

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.ErrorIs(t, summary.Failures[0].Err, context.DeadlineExceeded)
}

type failingSubjects struct{ blockingSource }

func (failingSubjects) Subjects(ctx context.Context) ([]string, error) {
	return nil, errors.New("redis down")
}

func TestRunner_SubjectListError(t *testing.T) {
	snk := newRecordingSink()
	r := NewRunner(failingSubjects{}, snk, "redis", testParams, testConfig(), testLogger())

	_, err := r.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, snk.runs)
}

func TestResultCache(t *testing.T) {
	cache := NewResultCache(10, time.Hour, testLogger())

	_, ok := cache.Get("u1")
	assert.False(t, ok)

	res := &timebin.Result{Subject: "u1"}
	cache.Set(res)
	got, ok := cache.Get("u1")
	require.True(t, ok)
	assert.Same(t, res, got)

	cache.Invalidate("u1")
	_, ok = cache.Get("u1")
	assert.False(t, ok)
}
