package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/jeeves-screentime/internal/collector"
	"github.com/saaga0h/jeeves-screentime/internal/runner"
	"github.com/saaga0h/jeeves-screentime/internal/sink"
	"github.com/saaga0h/jeeves-screentime/internal/source"
	"github.com/saaga0h/jeeves-screentime/pkg/config"
	"github.com/saaga0h/jeeves-screentime/pkg/health"
	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
	"github.com/saaga0h/jeeves-screentime/pkg/postgres"
	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.ServiceName = "screentime-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	params, err := cfg.TimebinParams()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting J.E.E.V.E.S. Screentime Agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"postgres_host", cfg.PostgresHost,
		"bucket_length", params.BucketLength,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)
	pgClient := postgres.NewClient(cfg, logger)

	if err := redisClient.Ping(ctx); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	if err := mqttClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to MQTT broker", "error", err)
		os.Exit(1)
	}

	pgSink := sink.NewPostgresSink(pgClient, cfg, logger)
	if err := pgSink.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to prepare result schema", "error", err)
		os.Exit(1)
	}

	cache := runner.NewResultCache(cfg.ResultCacheSize, cfg.ResultCacheTTL, logger)
	batch := runner.NewRunner(source.NewRedisSource(redisClient, logger), pgSink, "redis", params, cfg, logger).
		WithPublisher(mqttClient).
		WithCache(cache)

	agent := collector.NewAgent(mqttClient, redisClient, cfg, logger).
		OnStored(cache.Invalidate)
	trigger := runner.NewTrigger(batch, mqttClient, logger)

	healthChecker := health.NewChecker(mqttClient, redisClient, pgClient, logger)
	api := runner.NewAPI(batch, cache, logger)
	httpServer := startHTTPServer(cfg.HealthPort, healthChecker, api, logger)

	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			agentErr <- err
			return
		}
		if err := trigger.Start(ctx); err != nil {
			agentErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	logger.Info("Initiating graceful shutdown")
	cancel()
	trigger.Wait()

	mqttClient.Disconnect()
	if err := redisClient.Close(); err != nil {
		logger.Error("Error closing Redis client", "error", err)
	}
	if err := pgClient.Disconnect(); err != nil {
		logger.Error("Error closing Postgres client", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	logger.Info("Screentime agent shutdown complete")
}

func startHTTPServer(port int, checker *health.Checker, api *runner.API, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())
	mux.HandleFunc("/api/timebins", api.TimebinsHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	return server
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
