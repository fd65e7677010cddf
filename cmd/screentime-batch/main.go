package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-screentime/internal/report"
	"github.com/saaga0h/jeeves-screentime/internal/runner"
	"github.com/saaga0h/jeeves-screentime/internal/sink"
	"github.com/saaga0h/jeeves-screentime/internal/source"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/postgres"
	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

func main() {
	input := pflag.String("input", "", "YAML dataset with screen events and liveness stamps")
	fromRedis := pflag.Bool("from-redis", false, "Read subjects collected in Redis instead of a dataset file")
	dryRun := pflag.Bool("dry-run", false, "Process without writing results to Postgres")
	subjects := pflag.StringSlice("subjects", nil, "Process only these subjects")

	cfg := config.NewConfig()
	cfg.ServiceName = "screentime-batch"
	cfg.LogLevel = "warn"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if (*input == "") == !*fromRedis {
		fmt.Fprintln(os.Stderr, "Exactly one of --input or --from-redis is required")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *input, *fromRedis, *dryRun, *subjects, logger); err != nil {
		logger.Error("Batch run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, input string, fromRedis, dryRun bool, subjects []string, logger *slog.Logger) error {
	params, err := cfg.TimebinParams()
	if err != nil {
		return err
	}

	var (
		src        source.Source
		sourceName string
	)
	if fromRedis {
		redisClient := redis.NewClient(cfg, logger)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		src, sourceName = source.NewRedisSource(redisClient, logger), "redis"
	} else {
		ds, err := source.LoadYAML(input)
		if err != nil {
			return err
		}
		src, sourceName = ds.Source(), "yaml:"+input
	}

	var snk runner.Sink
	if !dryRun {
		pgClient := postgres.NewClient(cfg, logger)
		if err := pgClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		defer pgClient.Disconnect()

		pgSink := sink.NewPostgresSink(pgClient, cfg, logger)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			return err
		}
		snk = pgSink
	}

	summary, err := runner.NewRunner(src, snk, sourceName, params, cfg, logger).Run(ctx, subjects...)
	if err != nil {
		return err
	}

	failures := make([]report.Failure, 0, len(summary.Failures))
	for _, f := range summary.Failures {
		failures = append(failures, report.Failure{Subject: f.Subject, Err: f.Err})
	}
	report.WriteRun(os.Stdout, summary.Results, failures)
	fmt.Printf("run %s finished in %s\n", summary.RunID, summary.Duration)

	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
