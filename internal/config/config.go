package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the environment driven configuration for the chat server.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":3000"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"production"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// DatabaseURL selects postgres and takes precedence over DBPath.
	DatabaseURL string `env:"DATABASE_URL"`
	DBPath      string `env:"DB_PATH" envDefault:"db/chat.db"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`

	CompletionMaxTokens  int           `env:"COMPLETION_MAX_TOKENS" envDefault:"50"`
	CompletionTimeout    time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"30s"`
	CompletionMaxRetries int           `env:"COMPLETION_MAX_RETRIES" envDefault:"2"`

	PersonasFile string `env:"PERSONAS_FILE"`
}

// Load reads an optional .env file from the working directory, then parses
// the environment into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds Config from the process environment alone.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("one of DATABASE_URL or DB_PATH is required")
	}
	if cfg.CompletionMaxTokens <= 0 {
		return nil, fmt.Errorf("COMPLETION_MAX_TOKENS must be positive, got %d", cfg.CompletionMaxTokens)
	}
	if cfg.CompletionMaxRetries < 0 {
		return nil, fmt.Errorf("COMPLETION_MAX_RETRIES must not be negative, got %d", cfg.CompletionMaxRetries)
	}
	return cfg, nil
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
