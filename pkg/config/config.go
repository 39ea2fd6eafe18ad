// Package config holds the immutable, validated in-memory representation
// of a sql2ldap server: listen settings, the SQL backend connection, the
// single fixed LDAP suffix, and the attribute-to-SQL-expression mapping
// table as loaded from TOML.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

type (
	// Server holds the process-level and LDAP listener settings.
	Server struct {
		IP      string
		Port    uint16
		Threads uint32
		Seccomp bool
		Debug   bool
	}

	// Sql describes the backend database connection. Only the
	// PostgreSQL backend tag is currently supported; additional
	// backends plug in behind the same sqldriver.Driver interface.
	Sql struct {
		Backend  string
		Host     string
		Port     uint16
		User     string
		Pass     string
		Database string
		Table    string
	}

	// Ldap holds the single fixed suffix DN all synthesised entries
	// are rooted under.
	Ldap struct {
		Suffix string
	}

	// Config is the top-level, immutable configuration value
	// constructed once at startup (or on a validated hot-reload) and
	// shared by reference across every worker.
	Config struct {
		Server   Server
		Sql      Sql
		Ldap     Ldap
		Mappings map[string]string

		// WatchConfig enables the fsnotify-backed hot-reload loop.
		WatchConfig bool
		// StructuredLog selects JSON log output over the console writer.
		StructuredLog bool
	}
)

// Validate enforces the structural invariants from the data model: a
// "cn" mapping and an "objectClass" mapping must both be present, and
// mapping names must be unique once case-folded (LDAP attribute names
// are matched case-insensitively).
func (c *Config) Validate() error {
	if c.Server.IP == "" {
		return fmt.Errorf("[server] ip is required")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 389
	}
	if c.Server.Threads == 0 {
		c.Server.Threads = uint32(runtime.NumCPU())
	}

	if c.Sql.Backend == "" {
		c.Sql.Backend = "PostgreSQL"
	}
	if !strings.EqualFold(c.Sql.Backend, "PostgreSQL") {
		return fmt.Errorf("[sql] unsupported backend %q: only 'PostgreSQL' is supported", c.Sql.Backend)
	}
	if c.Sql.Host == "" {
		return fmt.Errorf("[sql] host is required")
	}
	if c.Sql.Table == "" {
		return fmt.Errorf("[sql] table is required")
	}

	if strings.TrimSpace(c.Ldap.Suffix) == "" {
		return fmt.Errorf("[ldap] suffix is required")
	}

	seen := make(map[string]string, len(c.Mappings))
	haveCN, haveObjectClass := false, false
	for name := range c.Mappings {
		lower := strings.ToLower(name)
		if other, dup := seen[lower]; dup {
			return fmt.Errorf("[mappings] attribute %q collides with %q (case-insensitive)", name, other)
		}
		seen[lower] = name
		if lower == "cn" {
			haveCN = true
		}
		if lower == "objectclass" {
			haveObjectClass = true
		}
	}
	if !haveCN {
		return fmt.Errorf("[mappings] a 'cn' mapping is required")
	}
	if !haveObjectClass {
		return fmt.Errorf("[mappings] an 'objectClass' mapping is required")
	}

	return nil
}
