package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "PORT", "LOG_LEVEL", "REDIS_URL", "SESSION_TTL", "VISION_MODEL", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "gpt-4o-mini", cfg.VisionModel)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Equal(t, 50, cfg.MaxSubscribersPerSession)
	assert.Equal(t, int64(2000), cfg.MaxStreamConnections)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("MAX_SUBSCRIBERS_PER_SESSION", "10")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.MaxSubscribersPerSession)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_InvalidTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_NonPositiveTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "-1h")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("MAX_STREAM_CONNECTIONS", "lots")
	_, err := Load()
	assert.Error(t, err)
}
