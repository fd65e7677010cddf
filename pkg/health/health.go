package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/jeeves-screentime/pkg/mqtt"
	"github.com/saaga0h/jeeves-screentime/pkg/postgres"
	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

const checkTimeout = 2 * time.Second

// Checker provides health check functionality for the screentime agent.
// Any dependency may be nil when the process runs without it.
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	logger   *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: pgClient,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis,omitempty"`
	MQTT     string `json:"mqtt,omitempty"`
	Postgres string `json:"postgres,omitempty"`
}

// HandlerFunc returns a liveness handler that answers 200 while the process is up
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns a handler that checks every configured dependency
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		services := h.Check(ctx)

		status := "healthy"
		statusCode := http.StatusOK
		if services.Redis == "disconnected" || services.MQTT == "disconnected" || services.Postgres == "disconnected" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		h.write(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		})
	}
}

// Check probes each dependency that was configured
func (h *Checker) Check(ctx context.Context) *Services {
	services := &Services{}

	if h.mqtt != nil {
		services.MQTT = "disconnected"
		if h.mqtt.IsConnected() {
			services.MQTT = "connected"
		}
	}

	if h.redis != nil {
		services.Redis = "connected"
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
			services.Redis = "disconnected"
		}
	}

	if h.postgres != nil {
		services.Postgres = "connected"
		status, err := h.postgres.HealthCheck(ctx)
		if err != nil || !status.Connected {
			services.Postgres = "disconnected"
		} else if !status.SchemaReady {
			services.Postgres = "schema_missing"
		}
	}

	return services
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
