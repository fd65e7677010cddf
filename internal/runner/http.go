package runner

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
)

// API serves results over HTTP, computing and caching on a miss
type API struct {
	runner *Runner
	cache  *ResultCache
	logger *slog.Logger
}

// NewAPI creates the results API
func NewAPI(runner *Runner, cache *ResultCache, logger *slog.Logger) *API {
	return &API{
		runner: runner,
		cache:  cache,
		logger: logger.With("component", "api"),
	}
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// TimebinsHandlerFunc handles GET /api/timebins?subject={subject}
func (a *API) TimebinsHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			a.write(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
			return
		}

		subject := r.URL.Query().Get("subject")
		if subject == "" {
			a.write(w, http.StatusBadRequest, ErrorResponse{Error: "subject is required"})
			return
		}

		if res, ok := a.cache.Get(subject); ok {
			w.Header().Set("X-Cache", "hit")
			a.write(w, http.StatusOK, res)
			return
		}

		res, err := a.runner.Compute(r.Context(), subject)
		if err != nil {
			a.logger.Error("Failed to compute timebins", "subject", subject, "error", err)
			status := http.StatusInternalServerError
			if errors.Is(err, timebin.ErrInvalidInput) {
				status = http.StatusUnprocessableEntity
			}
			a.write(w, status, ErrorResponse{Error: err.Error()})
			return
		}

		a.cache.Set(res)
		w.Header().Set("X-Cache", "miss")
		a.write(w, http.StatusOK, res)
	}
}

func (a *API) write(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode response", "error", err)
	}
}
