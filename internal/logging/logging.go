// Package logging builds the process-wide zerolog logger.
//
// A single Logger is constructed once at startup from the validated
// configuration. main.go keeps it in a package-level variable and hands
// it to the components that log (the protocol server, monitoring and
// tracing). Nothing in this codebase uses the standard "log" package.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. debug raises verbosity to Debug level;
// otherwise the server logs at Info level. structured selects JSON
// output (suitable for log shipping) over the human-readable console
// writer.
func New(debug bool, structured bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var out zerolog.Logger
	if structured {
		out = zerolog.New(os.Stderr)
	} else {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return out.Level(level).With().Timestamp().Logger()
}
