package tracing

import (
	"github.com/rs/zerolog"
)

// Config controls whether search spans are exported at all. This
// server has no admin HTTP surface to configure an OTLP collector
// endpoint from, so when enabled it exports to stdout; wiring a real
// collector is a matter of swapping the exporter construction in
// NewTracer.
type Config struct {
	Logger  *zerolog.Logger
	Enabled bool
}

func NewConfig(enabled bool, logger *zerolog.Logger) *Config {
	return &Config{Logger: logger, Enabled: enabled}
}
