package issuance

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config enables the development token issuer next to a game server.
type Config struct {
	Enabled       bool          `env:"AVB_ISSUER_ENABLED"`
	Listen        string        `env:"AVB_ISSUER_LISTEN"         envDefault:"127.0.0.1:16566"`
	TokenLifetime time.Duration `env:"AVB_ISSUER_TOKEN_LIFETIME" envDefault:"30s"`
	Timeout       time.Duration `env:"AVB_ISSUER_TIMEOUT"        envDefault:"10s"`
	// OriginPatterns are passed to the websocket handshake for browser clients.
	OriginPatterns []string `env:"AVB_ISSUER_ORIGINS" envSeparator:","`
}

// ParseConfig reads environ, or the process environment when environ is nil.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenLifetime <= 0 || cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("issuer token lifetime and timeout must be positive")
	}
	return cfg, nil
}
