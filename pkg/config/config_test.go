package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	p, err := cfg.TimebinParams()
	require.NoError(t, err)
	assert.Equal(t, timebin.DefaultParams(), p)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JEEVES_BUCKET_LENGTH", "600")
	t.Setenv("JEEVES_GAP_THRESHOLD", "1200")
	t.Setenv("JEEVES_STUDY_START", "2014-01-01T00:00:00Z")
	t.Setenv("JEEVES_WORKERS", "8")
	t.Setenv("JEEVES_POSTGRES_HOST", "db")
	t.Setenv("JEEVES_RESULT_CACHE_TTL", "10m")
	t.Setenv("JEEVES_REDIS_PORT", "not-a-number")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, int64(600), cfg.BucketLength)
	assert.Equal(t, int64(1200), cfg.GapThreshold)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "db", cfg.PostgresHost)
	assert.Equal(t, 10*time.Minute, cfg.ResultCacheTTL)
	assert.Equal(t, 6379, cfg.RedisPort, "unparsable values keep the default")

	p, err := cfg.TimebinParams()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC).Unix(), p.StudyStart)
}

func TestRegisterFlags(t *testing.T) {
	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--bucket-length=300",
		"--short-session-threshold=20",
		"--screen-topics=a/+,b/+",
	}))

	assert.Equal(t, int64(300), cfg.BucketLength)
	assert.Equal(t, int64(20), cfg.ShortSessionThreshold)
	assert.Equal(t, []string{"a/+", "b/+"}, cfg.ScreenTopics)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty broker", func(c *Config) { c.MQTTBroker = "" }},
		{"bad redis port", func(c *Config) { c.RedisPort = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"zero bucket length", func(c *Config) { c.BucketLength = 0 }},
		{"bad study start", func(c *Config) { c.StudyStart = "yesterday" }},
		{"inverted window", func(c *Config) { c.StudyEnd = "2000-01-01T00:00:00Z" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAddresses(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTAddress())
	assert.Equal(t, "localhost:6379", cfg.RedisAddress())
	assert.Contains(t, cfg.PostgresConnectionString(), "dbname=jeeves_screentime")
}

func TestTimebinParams_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unparsable study start", func(c *Config) { c.StudyStart = "yesterday" }},
		{"unparsable study end", func(c *Config) { c.StudyEnd = "2015-08-31" }},
		{"zero bucket length", func(c *Config) { c.BucketLength = 0 }},
		{"inverted window", func(c *Config) { c.StudyEnd = "2010-01-01T00:00:00Z" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)

			_, err := cfg.TimebinParams()
			assert.Error(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}
