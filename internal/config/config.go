package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// RedisURL selects the backing store: empty means the in-memory store,
	// anything else a Redis instance (e.g. "redis://localhost:6379").
	RedisURL string

	// SessionTTL is the time-to-live of a session measured from its last
	// write; every mutation refreshes it.
	SessionTTL time.Duration

	// OpenAIAPIKey enables the receipt extraction and verification endpoints.
	// Empty disables them (they respond 503).
	OpenAIAPIKey string
	VisionModel  string

	// CORSOrigins is the allowed origin list for browser clients; empty
	// allows all origins.
	CORSOrigins []string

	// Subscription stream limits.
	MaxSubscribersPerSession int
	MaxStreamConnections     int64
	MaxStreamConnsPerIP      int
	StreamConnsPerSecond     float64
	StreamConnBurst          int
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		RedisURL:     getEnv("REDIS_URL", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		VisionModel:  getEnv("VISION_MODEL", "gpt-4o-mini"),
	}

	ttl, err := getDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", ttl)
	}
	cfg.SessionTTL = ttl

	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitAndTrim(origins)
	}

	if cfg.MaxSubscribersPerSession, err = getInt("MAX_SUBSCRIBERS_PER_SESSION", 50); err != nil {
		return nil, err
	}
	maxConns, err := getInt("MAX_STREAM_CONNECTIONS", 2000)
	if err != nil {
		return nil, err
	}
	cfg.MaxStreamConnections = int64(maxConns)
	if cfg.MaxStreamConnsPerIP, err = getInt("MAX_STREAM_CONNECTIONS_PER_IP", 20); err != nil {
		return nil, err
	}
	if cfg.StreamConnBurst, err = getInt("STREAM_CONNECTION_BURST", 10); err != nil {
		return nil, err
	}
	perSecond, err := getInt("STREAM_CONNECTIONS_PER_SECOND", 5)
	if err != nil {
		return nil, err
	}
	cfg.StreamConnsPerSecond = float64(perSecond)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"24h\": %w", key, err)
	}
	return value, nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
