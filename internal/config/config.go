// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=5001"`

	DBDriver    string `env:"DB_DRIVER,default=postgres"`
	DatabaseDSN string `env:"DATABASE_DSN"`
	RedisAddr   string `env:"REDIS_ADDR"`

	JWTSecret  string        `env:"JWT_SECRET,required=true"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=72h"`
	CORSOrigin string        `env:"CORS_ORIGIN,default=http://localhost:5173"`
	LogLevel   string        `env:"LOG_LEVEL,default=info"`

	CompletionAPIKey    string        `env:"GROQ_API_KEY"`
	CompletionBaseURL   string        `env:"COMPLETION_BASE_URL,default=https://api.groq.com/openai/v1"`
	CompletionModel     string        `env:"COMPLETION_MODEL,default=allam-2-7b"`
	CompletionMaxTokens int           `env:"COMPLETION_MAX_TOKENS,default=150"`
	AITimeout           time.Duration `env:"AI_TIMEOUT,default=30s"`
	AIMaxInflight       int           `env:"AI_MAX_INFLIGHT,default=16"`
	AISystemPrompt      string        `env:"AI_SYSTEM_PROMPT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, errors.Wrap(err, "config error")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = DefaultDatabaseDSN
	}
	if c.AISystemPrompt == "" {
		c.AISystemPrompt = DefaultSystemPrompt
	}
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return errors.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.CompletionMaxTokens <= 0 {
		return errors.New("COMPLETION_MAX_TOKENS must be positive")
	}
	if c.AITimeout <= 0 {
		return errors.New("AI_TIMEOUT must be positive")
	}
	if c.AIMaxInflight <= 0 {
		return errors.New("AI_MAX_INFLIGHT must be positive")
	}
	return nil
}

// SetupLogging applies the configured level to the global zerolog logger.
func SetupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
}
