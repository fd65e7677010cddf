package postgres

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus represents the health of the Postgres connection
type HealthStatus struct {
	Connected     bool      `json:"connected"`
	ServerVersion string    `json:"server_version,omitempty"`
	Database      string    `json:"database"`
	SchemaReady   bool      `json:"schema_ready"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// HealthCheck reports connectivity, server version and whether the
// screentime result tables exist
func (c *PostgresClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := HealthStatus{
		Database:  c.config.PostgresDB,
		Timestamp: time.Now(),
	}

	if c.db == nil {
		status.Error = "not connected"
		return &status, nil
	}

	if err := c.db.PingContext(ctx); err != nil {
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return &status, nil
	}
	status.Connected = true

	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		status.Error = fmt.Sprintf("failed to get version: %v", err)
		return &status, nil
	}
	status.ServerVersion = version

	var ready bool
	err := c.db.QueryRowContext(ctx,
		"SELECT to_regclass('screentime_runs') IS NOT NULL AND to_regclass('screentime_rows') IS NOT NULL",
	).Scan(&ready)
	if err != nil {
		status.Error = fmt.Sprintf("failed to check schema: %v", err)
		return &status, nil
	}
	status.SchemaReady = ready

	return &status, nil
}
