// Package runner fans the timebin pipeline out over subjects.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saaga0h/jeeves-screentime/internal/sink"
	"github.com/saaga0h/jeeves-screentime/internal/source"
	"github.com/saaga0h/jeeves-screentime/internal/timebin"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
)

// Sink persists the output of a run
type Sink interface {
	BeginRun(ctx context.Context, run *sink.Run) error
	WriteResult(ctx context.Context, runID uuid.UUID, res *timebin.Result) error
	FinishRun(ctx context.Context, runID uuid.UUID, subjects, failed int) error
}

// Failure records a subject whose output was discarded
type Failure struct {
	Subject string
	Err     error
}

// Summary is the outcome of one run
type Summary struct {
	RunID    uuid.UUID
	Results  []*timebin.Result
	Failures []Failure
	Duration time.Duration
}

// ProcessedMessage is published for every successfully processed subject
type ProcessedMessage struct {
	RunID          string                     `json:"run_id"`
	Subject        string                     `json:"subject"`
	Rows           int                        `json:"rows"`
	Sessions       int                        `json:"sessions"`
	InvalidBuckets int                        `json:"invalid_buckets"`
	Counts         timebin.InvalidationCounts `json:"counts"`
	ProcessedAt    string                     `json:"processed_at"`
}

// Runner processes subjects independently with bounded parallelism.
// A failing subject is logged and its output dropped, the run continues.
type Runner struct {
	source     source.Source
	sink       Sink
	sourceName string
	params     timebin.Params
	workers    int
	timeout    time.Duration
	mqtt       mqtt.Client
	cache      *ResultCache
	logger     *slog.Logger
}

// NewRunner creates a runner. A nil sink processes without persisting.
func NewRunner(src source.Source, snk Sink, sourceName string, params timebin.Params, cfg *config.Config, logger *slog.Logger) *Runner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Runner{
		source:     src,
		sink:       snk,
		sourceName: sourceName,
		params:     params,
		workers:    workers,
		timeout:    cfg.SubjectTimeout(),
		logger:     logger.With("component", "runner"),
	}
}

// WithPublisher publishes a ProcessedMessage per subject on the given client
func (r *Runner) WithPublisher(client mqtt.Client) *Runner {
	r.mqtt = client
	return r
}

// WithCache stores every successful result in the cache
func (r *Runner) WithCache(cache *ResultCache) *Runner {
	r.cache = cache
	return r
}

// Params returns the pipeline parameters of the runner
func (r *Runner) Params() timebin.Params {
	return r.params
}

// Run processes the given subjects, or every subject of the source when
// none are given
func (r *Runner) Run(ctx context.Context, subjects ...string) (*Summary, error) {
	start := time.Now()

	if len(subjects) == 0 {
		var err error
		subjects, err = r.source.Subjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list subjects: %w", err)
		}
	}

	run := sink.NewRun(r.sourceName, r.params)
	if r.sink != nil {
		if err := r.sink.BeginRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to begin run: %w", err)
		}
	}

	r.logger.Info("Run started",
		"run_id", run.ID,
		"source", r.sourceName,
		"subjects", len(subjects),
		"workers", r.workers)

	summary := &Summary{RunID: run.ID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, subject := range subjects {
		g.Go(func() error {
			res, err := r.processSubject(gctx, run.ID, subject)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failures = append(summary.Failures, Failure{Subject: subject, Err: err})
				return nil
			}
			summary.Results = append(summary.Results, res)
			return nil
		})
	}
	// Workers never return errors, failures are collected per subject.
	_ = g.Wait()

	sort.Slice(summary.Results, func(i, j int) bool { return summary.Results[i].Subject < summary.Results[j].Subject })
	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].Subject < summary.Failures[j].Subject })
	summary.Duration = time.Since(start)

	if r.sink != nil {
		if err := r.sink.FinishRun(ctx, run.ID, len(subjects), len(summary.Failures)); err != nil {
			r.logger.Error("Failed to finish run", "run_id", run.ID, "error", err)
		}
	}

	r.logger.Info("Run completed",
		"run_id", run.ID,
		"processed", len(summary.Results),
		"failed", len(summary.Failures),
		"duration", summary.Duration)

	return summary, nil
}

// Compute runs the pipeline for one subject without persisting or publishing
func (r *Runner) Compute(ctx context.Context, subject string) (*timebin.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.compute(ctx, subject)
}

func (r *Runner) compute(ctx context.Context, subject string) (*timebin.Result, error) {
	in, err := r.source.Load(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to load subject: %w", err)
	}

	type outcome struct {
		res *timebin.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := timebin.Process(in, r.params)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("processing aborted: %w", ctx.Err())
	}
}

func (r *Runner) processSubject(ctx context.Context, runID uuid.UUID, subject string) (*timebin.Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.compute(ctx, subject)
	if err == nil && r.sink != nil {
		err = r.sink.WriteResult(ctx, runID, res)
	}
	if err != nil {
		attrs := []any{"run_id", runID, "subject", subject, "error", err}
		if errors.Is(err, timebin.ErrInvalidInput) {
			r.logger.Warn("Subject rejected", attrs...)
		} else {
			r.logger.Error("Subject failed", attrs...)
		}
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(res)
	}
	r.publish(runID, res)

	r.logger.Debug("Subject processed",
		"run_id", runID,
		"subject", subject,
		"rows", len(res.Rows),
		"sessions", len(res.Sessions),
		"invalid_buckets", len(res.InvalidBuckets),
		"duration", time.Since(start))

	return res, nil
}

func (r *Runner) publish(runID uuid.UUID, res *timebin.Result) {
	if r.mqtt == nil {
		return
	}

	msg := ProcessedMessage{
		RunID:          runID.String(),
		Subject:        res.Subject,
		Rows:           len(res.Rows),
		Sessions:       len(res.Sessions),
		InvalidBuckets: len(res.InvalidBuckets),
		Counts:         res.Counts,
		ProcessedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := mqtt.PublishJSON(r.mqtt, mqtt.ProcessedTopic(res.Subject), msg); err != nil {
		r.logger.Warn("Failed to publish processed message", "subject", res.Subject, "error", err)
	}
}
