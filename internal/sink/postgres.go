// Package sink persists timebin results.
package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/postgres"
)

var rowColumns = []string{
	"run_id", "subject", "bucket_id", "timebin_start",
	"screentime", "screentime_short", "screentime_long",
	"screencount", "screencount_short", "screencount_long",
}

var sessionColumns = []string{"run_id", "subject", "session_start", "duration", "class"}

// Run describes one batch run
type Run struct {
	ID        uuid.UUID
	Source    string
	StartedAt time.Time
	Params    timebin.Params
}

// NewRun creates a run with a fresh identifier
func NewRun(source string, params timebin.Params) *Run {
	return &Run{
		ID:        uuid.New(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		Params:    params,
	}
}

// PostgresSink writes runs and per-subject results to Postgres
type PostgresSink struct {
	client     postgres.Client
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewPostgresSink creates a sink. Writes are retried cfg.WriteAttempts times.
func NewPostgresSink(client postgres.Client, cfg *config.Config, logger *slog.Logger) *PostgresSink {
	attempts := cfg.WriteAttempts
	if attempts == 0 {
		attempts = 1
	}
	return &PostgresSink{
		client:     client,
		attempts:   attempts,
		retryDelay: 500 * time.Millisecond,
		logger:     logger.With("component", "postgres_sink"),
	}
}

// EnsureSchema creates the result tables if they do not exist
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// BeginRun records the start of a run
func (s *PostgresSink) BeginRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO screentime_runs (
			id, source, started_at, bucket_length, gap_threshold,
			short_session_threshold, max_session_duration, study_start, study_end
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return s.withRetry(ctx, "begin_run", func() error {
		_, err := s.client.Exec(ctx, query,
			run.ID,
			run.Source,
			run.StartedAt,
			run.Params.BucketLength,
			run.Params.GapThreshold,
			run.Params.ShortSessionThreshold,
			run.Params.MaxSessionDuration,
			run.Params.StudyStart,
			run.Params.StudyEnd,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return nil
	})
}

// FinishRun stamps the run with its completion time and subject tallies
func (s *PostgresSink) FinishRun(ctx context.Context, runID uuid.UUID, subjects, failed int) error {
	query := `
		UPDATE screentime_runs
		SET finished_at = $2, subjects = $3, failed_subjects = $4
		WHERE id = $1
	`

	return s.withRetry(ctx, "finish_run", func() error {
		if _, err := s.client.Exec(ctx, query, runID, time.Now().UTC(), subjects, failed); err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		return nil
	})
}

// WriteResult stores one subject's rows, sessions and diagnostics in a
// single transaction. Earlier output of the same subject in the same run
// is replaced, so a retried write never duplicates rows.
func (s *PostgresSink) WriteResult(ctx context.Context, runID uuid.UUID, res *timebin.Result) error {
	if res == nil {
		return errors.New("nil result")
	}

	start := time.Now()
	err := s.withRetry(ctx, "write_result", func() error {
		return s.client.Transaction(ctx, func(tx *sql.Tx) error {
			return writeResult(ctx, tx, runID, res)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to write result for subject %s: %w", res.Subject, err)
	}

	s.logger.Debug("Result written",
		"run_id", runID,
		"subject", res.Subject,
		"rows", len(res.Rows),
		"sessions", len(res.Sessions),
		"duration", time.Since(start))

	return nil
}

func (s *PostgresSink) withRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err != nil && ctx.Err() != nil {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("Postgres write failed, retrying", "op", op, "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
}

func writeResult(ctx context.Context, tx *sql.Tx, runID uuid.UUID, res *timebin.Result) error {
	for _, table := range []string{"screentime_rows", "screentime_sessions", "screentime_subjects"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE run_id = $1 AND subject = $2", table)
		if _, err := tx.ExecContext(ctx, query, runID, res.Subject); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := copyRows(ctx, tx, "screentime_rows", rowColumns, rowValues(runID, res.Rows)); err != nil {
		return err
	}
	if err := copyRows(ctx, tx, "screentime_sessions", sessionColumns, sessionValues(runID, res.Subject, res.Sessions)); err != nil {
		return err
	}

	query := `
		INSERT INTO screentime_subjects (
			run_id, subject, invalid_buckets, events, invalid_bucket_events,
			twins, broken_by_gap, sessions, dropped_sessions, unterminated_at_end,
			liveness_out_of_study
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	invalid := res.InvalidBuckets
	if invalid == nil {
		invalid = []int64{}
	}
	c := res.Counts
	_, err := tx.ExecContext(ctx, query,
		runID,
		res.Subject,
		pq.Array(invalid),
		c.Events,
		c.InvalidBucket,
		c.Twins,
		c.BrokenByGap,
		c.Sessions,
		c.DroppedSessions,
		c.UnterminatedAtEnd,
		c.LivenessOutOfStudy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subject diagnostics: %w", err)
	}
	return nil
}

// copyRows bulk loads values with COPY FROM STDIN
func copyRows(ctx context.Context, tx *sql.Tx, table string, columns []string, values [][]interface{}) error {
	if len(values) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, v...); err != nil {
			return fmt.Errorf("failed to copy into %s: %w", table, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush copy into %s: %w", table, err)
	}
	return nil
}

func rowValues(runID uuid.UUID, rows []timebin.Row) [][]interface{} {
	out := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, []interface{}{
			runID.String(),
			r.Subject,
			r.BucketID,
			r.TimebinStart,
			r.Screentime,
			r.ScreentimeShort,
			r.ScreentimeLong,
			r.Screencount,
			r.ScreencountShort,
			r.ScreencountLong,
		})
	}
	return out
}

func sessionValues(runID uuid.UUID, subject string, sessions []timebin.Session) [][]interface{} {
	out := make([][]interface{}, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, []interface{}{runID.String(), subject, s.Start, s.Duration, string(s.Class)})
	}
	return out
}
