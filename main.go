package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/sql2ldap/sql2ldap/internal/errs"
	"github.com/sql2ldap/sql2ldap/internal/logging"
	"github.com/sql2ldap/sql2ldap/internal/monitoring"
	"github.com/sql2ldap/sql2ldap/internal/protocol"
	"github.com/sql2ldap/sql2ldap/internal/sandbox"
	"github.com/sql2ldap/sql2ldap/internal/tomlconfig"
	"github.com/sql2ldap/sql2ldap/internal/tracing"
	"github.com/sql2ldap/sql2ldap/internal/version"
	"github.com/sql2ldap/sql2ldap/pkg/config"
	"github.com/sql2ldap/sql2ldap/pkg/mapping"
	"github.com/sql2ldap/sql2ldap/pkg/search"
	"github.com/sql2ldap/sql2ldap/pkg/sqldriver/postgres"
)

const defaultConfigLocation = "/etc/sql2ldap.toml"

var usage = `sql2ldap: expose a SQL table as a read-only LDAP directory

Usage:
  sql2ldap [options] [<config-file>]
  sql2ldap -h --help
  sql2ldap --version

Options:
  --check-config  Validate the configuration file and exit.
  -h, --help      Show this screen.
  --version       Show version.
`

var log zerolog.Logger

func main() {
	args, err := docopt.Parse(usage, nil, true, version.GetVersion(), false)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	location := defaultConfigLocation
	if v, ok := args["<config-file>"].(string); ok && v != "" {
		location = v
	}

	cfg, err := tomlconfig.Load(location)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if checkConfig, _ := args["--check-config"].(bool); checkConfig {
		fmt.Println("configuration file is valid")
		return
	}

	log = logging.New(cfg.Server.Debug, cfg.StructuredLog)
	log.Info().Str("version", version.Version).Msg("starting")

	if err := run(cfg, location); err != nil {
		log.Error().Err(err).Msg("fatal error")
		os.Exit(1)
	}
	log.Info().Msg("clean shutdown")
}

// run builds every long-lived dependency, serves until a termination
// signal arrives, and tears everything down in reverse order. It
// returns nil only on a clean, signal-triggered shutdown; any other
// return value is a fatal startup or bind failure.
func run(cfg *config.Config, location string) error {
	if cfg.Server.Threads > 0 {
		runtime.GOMAXPROCS(int(cfg.Server.Threads))
	}

	if cfg.Server.Seccomp {
		if err := sandbox.Install(sandbox.Policy{}); err != nil {
			if err == sandbox.ErrUnsupported {
				return errs.NewInfraError("sandbox requested but unsupported on this platform", err)
			}
			return errs.NewInfraError("installing sandbox", err)
		}
	}

	pool, err := postgres.Open(context.Background(), cfg.Sql)
	if err != nil {
		return errs.NewInfraError("connecting to SQL backend", err)
	}
	defer pool.Close()

	table, err := mapping.Build(cfg.Mappings)
	if err != nil {
		return errs.NewConfigError("building mapping table: %s", err)
	}

	executor := &search.Executor{
		Driver: pool,
		Table:  table,
		Suffix: cfg.Ldap.Suffix,
		Name:   cfg.Sql.Table,
	}
	handle := search.NewHandle(executor)

	monitor := monitoring.NewMonitor(&log)
	// No [tracing] section exists in this server's configuration
	// file; spans export to stdout whenever debug logging is on; the
	// exporter itself has its own internal/tracing.Config swap-point
	// for wiring a real collector later.
	tracer := tracing.NewTracer(tracing.NewConfig(cfg.Server.Debug, &log))

	srv := protocol.NewServer(
		protocol.Logger(log),
		protocol.Tracer(tracer),
		protocol.MonitorOption(monitor),
		protocol.Addr(fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port)),
		protocol.Executor(handle),
	)

	metricsSrv := startMetricsServer(cfg.Server.IP, cfg.Server.Port, log)
	defer metricsSrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WatchConfig {
		stopWatch, err := watchConfig(ctx, location, cfg, handle)
		if err != nil {
			log.Warn().Err(err).Msg("could not start config watcher")
		} else {
			defer stopWatch()
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
		cancel()
		srv.Close()
		<-serveErr
		return nil
	case err := <-serveErr:
		return errs.NewInfraError("listener failed", err)
	}
}

// startMetricsServer exposes the Prometheus registry monitoring.Monitor
// records into over plain HTTP, the way glauth's pkg/frontend wires
// monitoring.NewAPI into its admin web server. This server carries no
// other admin HTTP surface (no asset/config API), so rather than pull
// in a routing dependency for one handler it serves the single
// /metrics route directly, one port above the LDAP listener, and never
// fails startup if the port is unavailable: metrics exposure is a
// diagnostics aid, not a correctness requirement.
func startMetricsServer(ip string, ldapPort uint16, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	monitoring.NewAPI(log).RegisterEndpoints(mux)

	addr := fmt.Sprintf("%s:%d", ip, ldapPort+1)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("address", addr).Msg("metrics server failed to start")
		}
	}()

	log.Info().Str("address", addr).Msg("metrics endpoint listening")
	return srv
}

// watchConfig re-parses and re-validates location on every write event,
// installing a freshly built Executor (new mapping table and, when the
// [sql] section itself changed, a new connection pool) through handle
// on success. A reload that fails validation is logged and discarded;
// the server keeps serving against whatever Executor is already
// installed.
func watchConfig(ctx context.Context, location string, current *config.Config, handle *search.Handle) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(location); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadConfig(ctx, location, current, handle)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

func reloadConfig(ctx context.Context, location string, current *config.Config, handle *search.Handle) {
	cfg, err := tomlconfig.Load(location)
	if err != nil {
		log.Warn().Err(err).Msg("config reload failed validation; keeping previous configuration")
		return
	}

	table, err := mapping.Build(cfg.Mappings)
	if err != nil {
		log.Warn().Err(err).Msg("config reload produced an invalid mapping table; keeping previous configuration")
		return
	}

	prev := handle.Load()
	driver := prev.Driver
	sqlChanged := cfg.Sql != current.Sql
	if sqlChanged {
		reloadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		newPool, err := postgres.Open(reloadCtx, cfg.Sql)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("config reload could not reach the new SQL backend; keeping previous configuration")
			return
		}
		driver = newPool
		// The previous pool is intentionally left open rather than
		// closed here: a search that loaded the old Executor just
		// before this store may still be streaming rows through it.
	}

	handle.Store(&search.Executor{
		Driver: driver,
		Table:  table,
		Suffix: cfg.Ldap.Suffix,
		Name:   cfg.Sql.Table,
	})
	*current = *cfg
	log.Info().Msg("configuration reloaded")
}
