package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-screentime/pkg/redis"
)

type stubRedis struct {
	redis.Client
	pingErr error
}

func (s *stubRedis) Ping(ctx context.Context) error { return s.pingErr }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHandlerFunc(t *testing.T) {
	checker := NewChecker(nil, nil, nil, testLogger())

	rec := httptest.NewRecorder()
	checker.HandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	_, err := time.Parse(time.RFC3339Nano, resp.Timestamp)
	assert.NoError(t, err)
}

func TestDetailedHandlerFunc(t *testing.T) {
	tests := []struct {
		name       string
		redis      redis.Client
		wantStatus string
		wantCode   int
	}{
		{"redis up", &stubRedis{}, "healthy", http.StatusOK},
		{"redis down", &stubRedis{pingErr: errors.New("refused")}, "degraded", http.StatusServiceUnavailable},
		{"no dependencies", nil, "healthy", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(nil, tt.redis, nil, testLogger())

			rec := httptest.NewRecorder()
			checker.DetailedHandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}
