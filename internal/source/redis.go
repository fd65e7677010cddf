package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/saaga0h/jeeves-screentime/internal/collector"
	"github.com/saaga0h/jeeves-screentime/internal/timebin"
	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

// RedisSource reads the sorted sets written by the collector
type RedisSource struct {
	redis  redis.Client
	logger *slog.Logger
}

// NewRedisSource creates a source backed by the collector's Redis keys
func NewRedisSource(redisClient redis.Client, logger *slog.Logger) *RedisSource {
	return &RedisSource{
		redis:  redisClient,
		logger: logger.With("component", "redis_source"),
	}
}

func (r *RedisSource) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := r.redis.SMembers(ctx, redis.SubjectsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// Load reads the whole history of a subject. Events come back in score
// order, members with equal scores ordered by arrival.
func (r *RedisSource) Load(ctx context.Context, subject string) (timebin.SubjectInput, error) {
	in := timebin.SubjectInput{Subject: subject}

	members, err := r.redis.ZRangeByScoreWithScores(ctx, redis.ScreenEventsKey(subject), math.Inf(-1), math.Inf(1))
	if err != nil {
		return in, fmt.Errorf("failed to read screen events: %w", err)
	}

	stored := make([]collector.StoredEvent, 0, len(members))
	for _, m := range members {
		var ev collector.StoredEvent
		if err := json.Unmarshal([]byte(m.Member), &ev); err != nil {
			r.logger.Warn("Skipping malformed stored event", "subject", subject, "error", err)
			continue
		}
		stored = append(stored, ev)
	}
	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].Timestamp != stored[j].Timestamp {
			return stored[i].Timestamp < stored[j].Timestamp
		}
		return stored[i].ReceivedAt < stored[j].ReceivedAt
	})

	in.Events = make([]timebin.Event, 0, len(stored))
	for _, ev := range stored {
		in.Events = append(in.Events, timebin.Event{Subject: subject, Timestamp: ev.Timestamp, On: ev.On})
	}

	stamps, err := r.redis.ZRangeByScoreWithScores(ctx, redis.LivenessKey(subject), math.Inf(-1), math.Inf(1))
	if err != nil {
		return in, fmt.Errorf("failed to read liveness stamps: %w", err)
	}
	in.Liveness = make([]timebin.LivenessStamp, 0, len(stamps))
	for _, s := range stamps {
		in.Liveness = append(in.Liveness, timebin.LivenessStamp{Subject: subject, Timestamp: int64(s.Score)})
	}

	r.logger.Debug("Loaded subject history",
		"subject", subject,
		"events", len(in.Events),
		"liveness", len(in.Liveness))

	return in, nil
}
