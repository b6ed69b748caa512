package server

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config tunes the HTTP server. Flags override the parsed environment.
type Config struct {
	Host string `env:"FABLECAST_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"FABLECAST_PORT" envDefault:"8501"`

	// DBPath locates the render history database. Empty keeps history
	// in the assets dir.
	DBPath string `env:"FABLECAST_DB"`

	ReadTimeout     time.Duration `env:"FABLECAST_READ_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"FABLECAST_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// ConfigFromEnv parses the FABLECAST_* server variables.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing server environment: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	return nil
}
