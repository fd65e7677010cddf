package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

// Storage handles Redis storage operations for raw device data.
// Data is kept for the whole study, so no TTL is set on the sorted sets.
type Storage struct {
	redis  redis.Client
	logger *slog.Logger
}

// NewStorage creates a new storage handler
func NewStorage(redisClient redis.Client, logger *slog.Logger) *Storage {
	return &Storage{
		redis:  redisClient,
		logger: logger,
	}
}

// Store routes a parsed message to the matching sorted set
func (s *Storage) Store(ctx context.Context, msg *DeviceMessage, processor *Processor) error {
	switch msg.Kind {
	case KindScreen:
		return s.storeScreenEvent(ctx, msg, processor)
	case KindHeartbeat:
		return s.storeHeartbeat(ctx, msg)
	default:
		return fmt.Errorf("unsupported message kind %q", msg.Kind)
	}
}

// storeScreenEvent stores a screen event
// - screen:events:{subject} (sorted set, score = event timestamp)
// - meta:screen:{subject} (hash with lastEventTime)
func (s *Storage) storeScreenEvent(ctx context.Context, msg *DeviceMessage, processor *Processor) error {
	member, err := processor.BuildStoredEvent(msg)
	if err != nil {
		return err
	}

	if err := s.redis.ZAdd(ctx, redis.ScreenEventsKey(msg.Subject), float64(msg.Timestamp), member); err != nil {
		return fmt.Errorf("failed to add screen event: %w", err)
	}

	s.registerSubject(ctx, msg, "lastEventTime")
	return nil
}

// storeHeartbeat stores a liveness stamp
// - screen:liveness:{subject} (sorted set, member and score = timestamp)
func (s *Storage) storeHeartbeat(ctx context.Context, msg *DeviceMessage) error {
	member := strconv.FormatInt(msg.Timestamp, 10)
	if err := s.redis.ZAdd(ctx, redis.LivenessKey(msg.Subject), float64(msg.Timestamp), member); err != nil {
		return fmt.Errorf("failed to add heartbeat: %w", err)
	}

	s.registerSubject(ctx, msg, "lastHeartbeatTime")
	return nil
}

// registerSubject records the subject in the index and updates its metadata.
// Failures are logged only, the event itself is already stored.
func (s *Storage) registerSubject(ctx context.Context, msg *DeviceMessage, field string) {
	if err := s.redis.SAdd(ctx, redis.SubjectsKey, msg.Subject); err != nil {
		s.logger.Warn("Failed to index subject", "subject", msg.Subject, "error", err)
	}
	if err := s.redis.HSet(ctx, redis.SubjectMetaKey(msg.Subject), field, strconv.FormatInt(msg.Timestamp, 10)); err != nil {
		s.logger.Warn("Failed to update subject metadata", "subject", msg.Subject, "error", err)
	}
}
