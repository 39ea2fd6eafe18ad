package protocol

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/sql2ldap/sql2ldap/internal/monitoring"
	"github.com/sql2ldap/sql2ldap/pkg/search"
)

// Monitor is the metrics sink the bind and search handlers record
// against.
type Monitor = monitoring.MonitorInterface

// Option configures a Server, following the functional-options idiom
// used throughout this codebase's construction sites.
type Option func(*Options)

// Options holds every Server dependency assembled by newOptions.
type Options struct {
	Logger  zerolog.Logger
	Tracer  trace.Tracer
	Monitor Monitor

	Addr string

	// Executor is a Handle rather than a bare *search.Executor so a
	// config reload can install a freshly built Executor (new mapping
	// table, possibly a new SQL pool) without restarting the listener
	// or disturbing connections already mid-search.
	Executor *search.Handle
}

func newOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func Logger(val zerolog.Logger) Option {
	return func(o *Options) { o.Logger = val }
}

func Tracer(val trace.Tracer) Option {
	return func(o *Options) { o.Tracer = val }
}

func MonitorOption(val Monitor) Option {
	return func(o *Options) { o.Monitor = val }
}

func Addr(val string) Option {
	return func(o *Options) { o.Addr = val }
}

func Executor(val *search.Handle) Option {
	return func(o *Options) { o.Executor = val }
}
