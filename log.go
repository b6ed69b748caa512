package main

import (
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
)

// logConfig is read straight from the environment, before flags are
// parsed, so even config loading gets logged at the right level.
type logConfig struct {
	Debug   bool   `env:"FABLECAST_DEBUG"`
	LogFile string `env:"FABLECAST_LOGFILE"`
}

// setupLog configures the global logger and returns a closer for the
// optional log file.
func setupLog() (func() error, error) {
	cfg, err := env.ParseAs[logConfig]()
	if err != nil {
		return nil, fmt.Errorf("parsing log environment: %w", err)
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if cfg.LogFile == "" {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(expandPath(cfg.LogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(io.Writer(f))
	return f.Close, nil
}
