package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// LLMConfig holds extraction-service configuration
type LLMConfig struct {
	Model         string
	APIKey        string
	BaseURL       string
	Temperature   float32
	Timeout       time.Duration
	MaxInputBytes int
}

// PipelineConfig is the explicit orchestration policy: every retry count,
// backoff and staleness threshold is tunable rather than hardcoded.
type PipelineConfig struct {
	MaxAttempts        int           // transient retry budget per claim
	MalformedRetries   int           // extra attempts allowed for unparsable output
	BackoffBase        time.Duration // doubled per attempt
	ExtractTimeout     time.Duration // per extraction attempt
	MatchTimeout       time.Duration // per improve attempt
	StalenessThreshold time.Duration // processing rows older than this are re-opened
	SweepInterval      time.Duration // reconciliation cadence
	Workers            int
	QueueSize          int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		LLM: LLMConfig{
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			Temperature:   getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			MaxInputBytes: getEnvAsInt("LLM_MAX_INPUT_BYTES", 32*1024),
		},
		Pipeline: PipelineConfig{
			MaxAttempts:        getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			MalformedRetries:   getEnvAsInt("PIPELINE_MALFORMED_RETRIES", 1),
			BackoffBase:        getEnvAsDuration("PIPELINE_BACKOFF_BASE", 500*time.Millisecond),
			ExtractTimeout:     getEnvAsDuration("PIPELINE_EXTRACT_TIMEOUT", 60*time.Second),
			MatchTimeout:       getEnvAsDuration("PIPELINE_MATCH_TIMEOUT", 90*time.Second),
			StalenessThreshold: getEnvAsDuration("PIPELINE_STALENESS_THRESHOLD", 10*time.Minute),
			SweepInterval:      getEnvAsDuration("PIPELINE_SWEEP_INTERVAL", time.Minute),
			Workers:            getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:          getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_MAX_ATTEMPTS must be >= 1", ErrInvalidInput)
	}
	if c.Pipeline.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_WORKERS must be >= 1", ErrInvalidInput)
	}
	if c.Pipeline.StalenessThreshold <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_STALENESS_THRESHOLD must be positive", ErrInvalidInput)
	}
	return nil
}
