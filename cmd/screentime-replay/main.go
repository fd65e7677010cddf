package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-screentime/internal/replay"
	"github.com/saaga0h/jeeves-screentime/internal/source"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
)

func main() {
	input := pflag.String("input", "", "YAML dataset to publish")
	pause := pflag.Duration("pause", 0, "Delay between published messages")
	trigger := pflag.Bool("trigger", false, "Publish a process trigger after the dataset")

	cfg := config.NewConfig()
	cfg.ServiceName = "screentime-replay"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ds, err := source.LoadYAML(*input)
	if err != nil {
		logger.Error("Failed to load dataset", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := mqtt.NewClient(cfg, logger)
	if err := client.Connect(ctx); err != nil {
		logger.Error("Failed to connect to MQTT broker", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	start := time.Now()
	n, err := replay.NewPlayer(client, *pause, logger).Play(ctx, ds)
	if err != nil {
		logger.Error("Replay aborted", "published", n, "error", err)
		os.Exit(1)
	}

	if *trigger {
		if err := mqtt.PublishJSON(client, mqtt.TopicProcessTrigger, map[string]interface{}{}); err != nil {
			logger.Error("Failed to publish process trigger", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Replay complete", "published", n, "duration", time.Since(start))
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
