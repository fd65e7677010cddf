package runner

import (
	"log/slog"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
)

// ResultCache keeps the latest result of each subject in memory
type ResultCache struct {
	cache  *otter.Cache[string, *timebin.Result]
	logger *slog.Logger
}

// NewResultCache creates a bounded cache whose entries expire ttl after being written
func NewResultCache(size int, ttl time.Duration, logger *slog.Logger) *ResultCache {
	cache := otter.Must(&otter.Options[string, *timebin.Result]{
		MaximumSize:      size,
		ExpiryCalculator: otter.ExpiryWriting[string, *timebin.Result](ttl),
	})

	return &ResultCache{
		cache:  cache,
		logger: logger.With("component", "result_cache"),
	}
}

// Get returns the cached result of a subject
func (c *ResultCache) Get(subject string) (*timebin.Result, bool) {
	res, ok := c.cache.GetIfPresent(subject)
	if !ok {
		c.logger.Debug("cache miss", "subject", subject)
	}
	return res, ok
}

// Set stores the result of a subject, replacing an older one
func (c *ResultCache) Set(res *timebin.Result) {
	c.cache.Set(res.Subject, res)
}

// Invalidate drops a subject's cached result
func (c *ResultCache) Invalidate(subject string) {
	c.cache.Invalidate(subject)
}
