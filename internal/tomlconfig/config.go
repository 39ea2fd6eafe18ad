// Package tomlconfig loads and validates the server's TOML configuration
// file in a read -> decode -> validate pipeline, pared down to this
// server's sections: [server], [sql], [ldap], [mappings]. No command-line
// flags are merged into the result.
package tomlconfig

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/sql2ldap/sql2ldap/internal/errs"
	"github.com/sql2ldap/sql2ldap/pkg/config"
)

// fileFormat mirrors the on-disk TOML shape exactly; it is decoded into
// this private struct first so that config.Config itself can stay free
// of toml struct tags. Defaults (port, threads, backend) are filled in
// afterwards by config.Config.Validate.
type fileFormat struct {
	Server struct {
		IP      string `toml:"ip"`
		Port    uint16 `toml:"port"`
		Threads uint32 `toml:"threads"`
		Seccomp bool   `toml:"seccomp"`
		Debug   bool   `toml:"debug"`
	} `toml:"server"`

	Sql struct {
		Backend  string `toml:"backend"`
		Host     string `toml:"host"`
		Port     uint16 `toml:"port"`
		User     string `toml:"user"`
		Pass     string `toml:"pass"`
		Database string `toml:"database"`
		Table    string `toml:"table"`
	} `toml:"sql"`

	Ldap struct {
		Suffix string `toml:"suffix"`
	} `toml:"ldap"`

	Mappings map[string]string `toml:"mappings"`

	// These two mirror glauth's top-level Config.WatchConfig /
	// Config.StructuredLog: plain top-level keys, not nested under
	// [server], so an operator flips them the same way they would on
	// the teacher.
	WatchConfig   bool `toml:"watchconfig"`
	StructuredLog bool `toml:"structuredlog"`
}

// Load reads, decodes and validates the configuration file at location.
// A malformed or semantically invalid file is always a fatal
// ConfigError-wrapped error; callers at startup should treat any
// returned error as fatal, never retry mid-connection.
func Load(location string) (*config.Config, error) {
	raw, err := os.ReadFile(location)
	if err != nil {
		return nil, errs.NewConfigError("reading %s: %s", location, err)
	}

	var ff fileFormat
	if _, err := toml.Decode(string(raw), &ff); err != nil {
		return nil, errs.NewConfigError("parsing %s: %s", location, err)
	}

	cfg := &config.Config{
		Server: config.Server{
			IP:      ff.Server.IP,
			Port:    ff.Server.Port,
			Threads: ff.Server.Threads,
			Seccomp: ff.Server.Seccomp,
			Debug:   ff.Server.Debug,
		},
		Sql: config.Sql{
			Backend:  ff.Sql.Backend,
			Host:     ff.Sql.Host,
			Port:     ff.Sql.Port,
			User:     ff.Sql.User,
			Pass:     ff.Sql.Pass,
			Database: ff.Sql.Database,
			Table:    ff.Sql.Table,
		},
		Ldap: config.Ldap{
			Suffix: ff.Ldap.Suffix,
		},
		Mappings: ff.Mappings,

		WatchConfig:   ff.WatchConfig,
		StructuredLog: ff.StructuredLog,
	}

	if err := cfg.Validate(); err != nil {
		return nil, errs.NewConfigError("%s", err)
	}

	return cfg, nil
}
