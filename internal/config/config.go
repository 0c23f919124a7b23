// Package config provides configuration loading for the agentflow service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the agentflow service.
type Config struct {
	// Server configuration
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Store configuration
	StoreType string // "memory" or "redis"
	StoreTTL  time.Duration
	LogMaxLen int64
	KeyPrefix string

	// Inference service
	InferenceURL     string
	InferenceTimeout time.Duration

	// Email notification
	SMTPAddr     string
	SMTPFrom     string
	SMTPTo       string
	SMTPUsername string
	SMTPPassword string

	// Sheet data source
	SheetsBaseURL string
	SheetID       string
	SheetRange    string
	SheetsAPIKey  string

	// Identity
	DefaultUserID string

	// CORS configuration
	CORSOrigins []string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Tracing
	TracingEnabled  bool
	TracingEndpoint string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port:          getEnv("PORT", "8080"),
		ReadTimeout:   getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownGrace: getDuration("SHUTDOWN_GRACE", 10*time.Second),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		// Store
		StoreType: getEnv("AGENTFLOW_STORE", "memory"), // "memory" or "redis"
		StoreTTL:  getDuration("STORE_TTL", 30*24*time.Hour),
		LogMaxLen: getInt64("LOG_MAX_LEN", 5000),
		KeyPrefix: getEnv("KEY_PREFIX", "agentflow"),

		// Inference
		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:5001/api/agent"),
		InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 60*time.Second),

		// Email
		SMTPAddr:     getEnv("SMTP_ADDR", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "agentflow@localhost"),
		SMTPTo:       getEnv("RECEIVER_EMAIL", ""),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		// Sheets
		SheetsBaseURL: getEnv("SHEETS_BASE_URL", ""),
		SheetID:       getEnv("SHEET_ID", ""),
		SheetRange:    getEnv("SHEET_RANGE", "Sheet1!A1:C100"),
		SheetsAPIKey:  getEnv("SHEETS_API_KEY", ""),

		// Identity
		DefaultUserID: getEnv("DEFAULT_USER_ID", "test-user-123"),

		// CORS
		CORSOrigins: getStringSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		// Rate limiting
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 100.0),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 200),

		// Tracing
		TracingEnabled:  getBool("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		return strings.Split(val, ",")
	}
	return defaultVal
}
