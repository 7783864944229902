package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/entitlements/internal/config"
)

// NewLogger creates a structured zerolog.Logger writing JSON to stdout, tagged
// with the service and component names.
func NewLogger(cfg *config.Config, component string) zerolog.Logger {
	return newLogger(os.Stdout, cfg, component)
}

func newLogger(w io.Writer, cfg *config.Config, component string) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()

	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	if cfg.Store != "" {
		ctx = ctx.Str("store", cfg.Store)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
