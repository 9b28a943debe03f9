package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("RoomURL joins base and room id", func(t *testing.T) {
		cfg := &Config{VideoCallBase: "https://meet.example.com/room"}
		assert.Equal(t, "https://meet.example.com/room/abc-123", cfg.RoomURL("abc-123"))
	})

	t.Run("RoomURL tolerates trailing slash on base", func(t *testing.T) {
		cfg := &Config{VideoCallBase: "https://meet.example.com/room/"}
		assert.Equal(t, "https://meet.example.com/room/abc-123", cfg.RoomURL("abc-123"))
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts a sane config", func(t *testing.T) {
		cfg := &Config{
			DatabaseURL:     "postgres://localhost/test",
			RedisURL:        "rediss://localhost:6379",
			VideoCallBase:   "https://meet.example.com/room",
			RateLimitPerMin: 120,
		}
		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("rejects non-positive rate limit", func(t *testing.T) {
		cfg := &Config{RateLimitPerMin: 0}
		assert.Error(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                os.Getenv("PORT"),
		"DATABASE_URL":        os.Getenv("DATABASE_URL"),
		"REDIS_URL":           os.Getenv("REDIS_URL"),
		"LOG_LEVEL":           os.Getenv("LOG_LEVEL"),
		"VIDEO_CALL_BASE_URL": os.Getenv("VIDEO_CALL_BASE_URL"),
		"WS_ALLOWED_ORIGIN":   os.Getenv("WS_ALLOWED_ORIGIN"),
		"RATE_LIMIT_PER_MIN":  os.Getenv("RATE_LIMIT_PER_MIN"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("VIDEO_CALL_BASE_URL")
		os.Unsetenv("WS_ALLOWED_ORIGIN")
		os.Unsetenv("RATE_LIMIT_PER_MIN")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 120, cfg.RateLimitPerMin)
		assert.NotEmpty(t, cfg.VideoCallBase)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("PORT", "9090")
		os.Setenv("DATABASE_URL", "postgres://localhost/custom")
		os.Setenv("REDIS_URL", "rediss://localhost:6380")
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("VIDEO_CALL_BASE_URL", "https://video.example.com")
		os.Setenv("WS_ALLOWED_ORIGIN", "https://app.example.com")
		os.Setenv("RATE_LIMIT_PER_MIN", "60")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "https://video.example.com", cfg.VideoCallBase)
		assert.Equal(t, "https://app.example.com", cfg.AllowedOrigin)
		assert.Equal(t, 60, cfg.RateLimitPerMin)
	})

	t.Run("fails without DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}
