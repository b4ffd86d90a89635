package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                    int    `env:"PORT" envDefault:"8080"`
	DatabaseURL             string `env:"DATABASE_URL,required"`
	RedisURL                string `env:"REDIS_URL,required"`
	OpenRouterAPIKey        string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel         string `env:"OPENROUTER_MODEL" envDefault:"google/gemini-2.0-flash-lite-001"`
	OpenRouterBaseURL       string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	UploadDir               string `env:"UPLOAD_DIR" envDefault:"uploads"`
	SessionTTLSeconds       int    `env:"SESSION_TTL_SECONDS" envDefault:"600"`
	InferenceTimeoutSeconds int    `env:"INFERENCE_TIMEOUT_SECONDS" envDefault:"45"`
	MaxUploadBytes          int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive, got %d", c.SessionTTLSeconds)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}

	if isProduction {
		if c.OpenRouterAPIKey == "" {
			log.Warn().Msg("OPENROUTER_API_KEY is empty in production: meal analysis will fail")
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
