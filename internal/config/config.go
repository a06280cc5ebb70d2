package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	AllowedOrigin string

	UseMemoryQueue bool
	WorkerCount    int

	DatabaseURL string

	// Upstream data services (CRM, credit bureau, offer mart).
	UpstreamMode        string
	CRMBaseURL          string
	CreditBureauBaseURL string
	OfferMartBaseURL    string
	UpstreamTimeout     time.Duration
	UpstreamMaxRetries  int
	UpstreamRetryBase   time.Duration
	UpstreamRetryCap    time.Duration
	UpstreamMaxWait     time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	EventQueueURL       string
	EventJobsTable      string
	DocumentBucket      string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	MaxUploadBytes int64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 4),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		UpstreamMode:        strings.ToLower(strings.TrimSpace(getEnv("UPSTREAM_MODE", "fake"))),
		CRMBaseURL:          getEnv("CRM_API_URL", "http://localhost:3001"),
		CreditBureauBaseURL: getEnv("CREDIT_BUREAU_API_URL", "http://localhost:3002"),
		OfferMartBaseURL:    getEnv("OFFER_MART_API_URL", "http://localhost:3003"),
		UpstreamTimeout:     getEnvAsDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		UpstreamMaxRetries:  getEnvAsInt("UPSTREAM_MAX_RETRIES", 3),
		UpstreamRetryBase:   getEnvAsDuration("UPSTREAM_RETRY_BASE", 200*time.Millisecond),
		UpstreamRetryCap:    getEnvAsDuration("UPSTREAM_RETRY_CAP", 5*time.Second),
		UpstreamMaxWait:     getEnvAsDuration("UPSTREAM_RETRY_MAX_WAIT", 10*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		EventQueueURL:       getEnv("EVENT_QUEUE_URL", ""),
		EventJobsTable:      getEnv("EVENT_JOBS_TABLE", ""),
		DocumentBucket:      getEnv("DOCUMENT_BUCKET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
