package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	RedisURL        string `env:"REDIS_URL,required"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	VideoCallBase   string `env:"VIDEO_CALL_BASE_URL" envDefault:"https://meet.carelink.health/room"`
	AllowedOrigin   string `env:"WS_ALLOWED_ORIGIN" envDefault:""`
	RateLimitPerMin int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RoomURL derives the client-facing call URL for a room identifier.
func (c *Config) RoomURL(roomID string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.VideoCallBase, "/"), roomID)
}

func (c *Config) Validate(isProduction bool) error {
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}

	if isProduction {
		if c.AllowedOrigin == "" {
			log.Warn().Msg("WS_ALLOWED_ORIGIN is empty in production: websocket origin checks disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if !strings.HasPrefix(c.VideoCallBase, "https://") {
			log.Warn().Msg("VIDEO_CALL_BASE_URL is not https in production")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
