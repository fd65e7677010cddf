package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
)

// Config holds the configuration for a screentime agent or batch run
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Collector configuration
	ScreenTopics   []string
	LivenessTopics []string

	// Timebin configuration (seconds)
	BucketLength          int64
	GapThreshold          int64
	ShortSessionThreshold int64
	MaxSessionDuration    int64
	StudyStart            string
	StudyEnd              string

	// Batch configuration
	Workers           int
	SubjectTimeoutSec int
	WriteAttempts     uint
	ResultCacheSize   int
	ResultCacheTTL    time.Duration
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:   "localhost",
		MQTTPort:     1883,
		MQTTUser:     "",
		MQTTPassword: "",
		MQTTClientID: "",

		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "jeeves",
		PostgresPassword:           "",
		PostgresDB:                 "jeeves_screentime",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,

		ServiceName: "screentime-agent",
		HealthPort:  8080,
		LogLevel:    "info",

		ScreenTopics:   []string{"automation/raw/screen/+"},
		LivenessTopics: []string{"automation/raw/heartbeat/+"},

		BucketLength:          timebin.DefaultBucketLength,
		GapThreshold:          timebin.DefaultGapThreshold,
		ShortSessionThreshold: timebin.DefaultShortSessionThreshold,
		MaxSessionDuration:    timebin.DefaultMaxSessionDuration,
		StudyStart:            timebin.DefaultStudyStart.Format(time.RFC3339),
		StudyEnd:              timebin.DefaultStudyEnd.Format(time.RFC3339),

		Workers:           4,
		SubjectTimeoutSec: 300,
		WriteAttempts:     5,
		ResultCacheSize:   1000,
		ResultCacheTTL:    time.Hour,
	}
}

// LoadFromEnv loads configuration from environment variables with JEEVES_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("JEEVES_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("JEEVES_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("JEEVES_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("JEEVES_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("JEEVES_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("JEEVES_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("JEEVES_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("JEEVES_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("JEEVES_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("JEEVES_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("JEEVES_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PostgresMaxConnections = n
		}
	}

	// Service configuration
	if v := os.Getenv("JEEVES_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("JEEVES_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("JEEVES_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Timebin configuration
	if v := os.Getenv("JEEVES_BUCKET_LENGTH"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.BucketLength = n
		}
	}
	if v := os.Getenv("JEEVES_GAP_THRESHOLD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.GapThreshold = n
		}
	}
	if v := os.Getenv("JEEVES_SHORT_SESSION_THRESHOLD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.ShortSessionThreshold = n
		}
	}
	if v := os.Getenv("JEEVES_MAX_SESSION_DURATION"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxSessionDuration = n
		}
	}
	if v := os.Getenv("JEEVES_STUDY_START"); v != "" {
		c.StudyStart = v
	}
	if v := os.Getenv("JEEVES_STUDY_END"); v != "" {
		c.StudyEnd = v
	}

	// Batch configuration
	if v := os.Getenv("JEEVES_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("JEEVES_SUBJECT_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SubjectTimeoutSec = n
		}
	}
	if v := os.Getenv("JEEVES_WRITE_ATTEMPTS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.WriteAttempts = uint(n)
		}
	}
	if v := os.Getenv("JEEVES_RESULT_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ResultCacheSize = n
		}
	}
	if v := os.Getenv("JEEVES_RESULT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ResultCacheTTL = d
		}
	}
}

// RegisterFlags binds the config fields to a flag set
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Collector flags
	fs.StringSliceVar(&c.ScreenTopics, "screen-topics", c.ScreenTopics, "MQTT topics carrying screen on/off events")
	fs.StringSliceVar(&c.LivenessTopics, "liveness-topics", c.LivenessTopics, "MQTT topics carrying device heartbeats")

	// Timebin flags
	fs.Int64Var(&c.BucketLength, "bucket-length", c.BucketLength, "Timebin length in seconds")
	fs.Int64Var(&c.GapThreshold, "gap-threshold", c.GapThreshold, "Longest heartbeat gap (seconds) before timebins are invalidated")
	fs.Int64Var(&c.ShortSessionThreshold, "short-session-threshold", c.ShortSessionThreshold, "Longest short session in seconds")
	fs.Int64Var(&c.MaxSessionDuration, "max-session-duration", c.MaxSessionDuration, "Longest plausible session in seconds")
	fs.StringVar(&c.StudyStart, "study-start", c.StudyStart, "Study window start (RFC3339)")
	fs.StringVar(&c.StudyEnd, "study-end", c.StudyEnd, "Study window end (RFC3339)")

	// Batch flags
	fs.IntVar(&c.Workers, "workers", c.Workers, "Subjects processed concurrently")
	fs.IntVar(&c.SubjectTimeoutSec, "subject-timeout", c.SubjectTimeoutSec, "Per-subject timeout in seconds")
	fs.UintVar(&c.WriteAttempts, "write-attempts", c.WriteAttempts, "Attempts for each result write")
	fs.IntVar(&c.ResultCacheSize, "result-cache-size", c.ResultCacheSize, "Subjects kept in the result cache")
	fs.DurationVar(&c.ResultCacheTTL, "result-cache-ttl", c.ResultCacheTTL, "Result cache entry lifetime")
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("Postgres port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.SubjectTimeoutSec <= 0 {
		return fmt.Errorf("subject timeout must be positive")
	}
	if c.WriteAttempts == 0 {
		return fmt.Errorf("write attempts must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if _, err := c.TimebinParams(); err != nil {
		return err
	}

	return nil
}

// TimebinParams converts the timebin settings into pipeline parameters
func (c *Config) TimebinParams() (timebin.Params, error) {
	start, err := time.Parse(time.RFC3339, c.StudyStart)
	if err != nil {
		return timebin.Params{}, fmt.Errorf("invalid study start %q: %w", c.StudyStart, err)
	}
	end, err := time.Parse(time.RFC3339, c.StudyEnd)
	if err != nil {
		return timebin.Params{}, fmt.Errorf("invalid study end %q: %w", c.StudyEnd, err)
	}

	p := timebin.Params{
		BucketLength:          c.BucketLength,
		GapThreshold:          c.GapThreshold,
		ShortSessionThreshold: c.ShortSessionThreshold,
		MaxSessionDuration:    c.MaxSessionDuration,
		StudyStart:            start.Unix(),
		StudyEnd:              end.Unix(),
	}
	if err := p.Validate(); err != nil {
		return timebin.Params{}, err
	}
	return p, nil
}

// SubjectTimeout returns the per-subject processing timeout
func (c *Config) SubjectTimeout() time.Duration {
	return time.Duration(c.SubjectTimeoutSec) * time.Second
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns the lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}
