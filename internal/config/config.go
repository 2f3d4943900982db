// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrDatabaseDSNRequired is returned when DATABASE_DSN is not set.
	ErrDatabaseDSNRequired = errors.New("config: DATABASE_DSN is required")
	// ErrS3BucketRequired is returned when S3_BUCKET is not set.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Database settings
	DatabaseDSN string `env:"DATABASE_DSN, required" json:"-"` // Masked in JSON

	// Redis settings for the task queue
	RedisAddr     string `env:"REDIS_ADDR, default=localhost:6379" json:"redis_addr"`
	RedisPassword string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB       int    `env:"REDIS_DB, default=0" json:"redis_db"`

	// Object storage settings
	S3Bucket           string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Region           string `env:"S3_REGION, default=us-east-1" json:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"` // Set for MinIO
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`               // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"`           // Masked in JSON

	// Provider credentials; each client also falls back to its own env var.
	ReplicateAPIToken string `env:"REPLICATE_API_TOKEN" json:"-"` // Masked in JSON
	KlingAPIKey       string `env:"KLING_API_KEY" json:"-"`       // Masked in JSON
	SyncLabsAPIKey    string `env:"SYNCLABS_API_KEY" json:"-"`    // Masked in JSON

	// Default provider models, overridable per scene
	ImageModel   string `env:"IMAGE_MODEL, default=black-forest-labs/flux-dev" json:"image_model"`
	VideoModel   string `env:"VIDEO_MODEL, default=kling-v1-6" json:"video_model"`
	LipsyncModel string `env:"LIPSYNC_MODEL, default=lipsync-2" json:"lipsync_model"`

	// Pipeline retry policy
	MaxAttempts   int  `env:"MAX_ATTEMPTS, default=3" json:"max_attempts"`
	RetryRejected bool `env:"RETRY_REJECTED, default=false" json:"retry_rejected"`

	// Provider polling bounds
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=3s" json:"poll_interval"`
	PollMaxInterval time.Duration `env:"POLL_MAX_INTERVAL, default=30s" json:"poll_max_interval"`
	PollMaxWait     time.Duration `env:"POLL_MAX_WAIT, default=20m" json:"poll_max_wait"`

	// SignedURLTTL is the validity window of artifact URLs handed to providers.
	SignedURLTTL time.Duration `env:"SIGNED_URL_TTL, default=2h" json:"signed_url_ttl"`

	// WorkerConcurrency is the number of pipeline stages processed in parallel.
	WorkerConcurrency int `env:"WORKER_CONCURRENCY, default=5" json:"worker_concurrency"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "DATABASE_DSN") {
			return nil, ErrDatabaseDSNRequired
		}
		if strings.Contains(err.Error(), "S3_BUCKET") {
			return nil, ErrS3BucketRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return ErrDatabaseDSNRequired
	}
	if c.S3Bucket == "" {
		return ErrS3BucketRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, RedisAddr: %s, S3Bucket: %s, S3Region: %s, ImageModel: %s, VideoModel: %s, LipsyncModel: %s, MaxAttempts: %d, RetryRejected: %t, WorkerConcurrency: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.RedisAddr,
		c.S3Bucket,
		c.S3Region,
		c.ImageModel,
		c.VideoModel,
		c.LipsyncModel,
		c.MaxAttempts,
		c.RetryRejected,
		c.WorkerConcurrency,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
