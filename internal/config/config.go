// internal/config/config.go
//
// Process configuration for the Simon server.
//
// Sources, in order:
//   1. A `.env` file in the working directory, if present (godotenv).
//   2. Process environment, parsed into Config via struct tags (caarlos0/env).
//
// Variables:
//   PORT               listen port (default 5175)
//   LOG_LEVEL          zerolog level (default info)
//   CLIENT_ORIGIN      CORS origin (default http://localhost:5173)
//   JWT_SECRET         HMAC key for session tokens
//   JWT_TTL            session token lifetime (default 12h)
//   SIMON_MAX_LENGTH   target length that wins (default 20)
//   SIMON_LEAD_IN      pause before each playback (default 500ms)
//   SIMON_HIGHLIGHT    time a signal stays lit (default 500ms)
//   SIMON_GAP          pause between signals (default 500ms)
//   SIMON_SIGNALS_FILE palette file; empty uses the embedded classic palette
//   DAILY_SALT         salt for daily challenge sequences

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/itxchy/simon/internal/simon"
)

// Config is the full server configuration.
type Config struct {
	Port         string        `env:"PORT" envDefault:"5175"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	ClientOrigin string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	JWTSecret    string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTTTL       time.Duration `env:"JWT_TTL" envDefault:"12h"`

	MaxLength   int           `env:"SIMON_MAX_LENGTH" envDefault:"20"`
	LeadIn      time.Duration `env:"SIMON_LEAD_IN" envDefault:"500ms"`
	Highlight   time.Duration `env:"SIMON_HIGHLIGHT" envDefault:"500ms"`
	Gap         time.Duration `env:"SIMON_GAP" envDefault:"500ms"`
	SignalsFile string        `env:"SIMON_SIGNALS_FILE"`

	DailySalt string `env:"DAILY_SALT" envDefault:"local_dev_salt"`
}

// Load reads an optional .env file and parses the environment.
func Load(dotenv ...string) (Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads Config from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxLength < 1 {
		return Config{}, fmt.Errorf("parse env: SIMON_MAX_LENGTH must be positive, got %d", cfg.MaxLength)
	}
	return cfg, nil
}

// Engine returns the engine parameters.
func (c Config) Engine() simon.Config {
	return simon.Config{
		MaxLength: c.MaxLength,
		LeadIn:    c.LeadIn,
		Highlight: c.Highlight,
		Gap:       c.Gap,
	}
}
