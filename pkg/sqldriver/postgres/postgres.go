// Package postgres implements sqldriver.Driver on top of pgx's
// connection pool, chosen (over database/sql + lib/pq, the teacher's
// original choice) because the spec requires a genuinely async,
// context-cancellable streaming client: pgxpool cancels the
// server-side query when its context is cancelled, which is exactly
// the propagation the search executor's cancellation model depends on.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sql2ldap/sql2ldap/pkg/config"
	"github.com/sql2ldap/sql2ldap/pkg/sqldriver"
)

// Driver wraps a pgxpool.Pool.
type Driver struct {
	pool *pgxpool.Pool
}

// Open builds the connection string from the [sql] configuration
// section and establishes (and pings) the pool. A unix-socket host is
// indicated by the "unix:" prefix, matching the config contract.
func Open(ctx context.Context, cfg config.Sql) (*Driver, error) {
	connString, err := buildConnString(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: unable to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: unable to reach database: %w", err)
	}

	return &Driver{pool: pool}, nil
}

func buildConnString(cfg config.Sql) (string, error) {
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres: [sql] database is required")
	}

	params := fmt.Sprintf("dbname=%s", cfg.Database)
	if cfg.User != "" {
		params += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Pass != "" {
		params += fmt.Sprintf(" password=%s", cfg.Pass)
	}

	if len(cfg.Host) > 5 && cfg.Host[:5] == "unix:" {
		params += fmt.Sprintf(" host=%s", cfg.Host[5:])
	} else if cfg.Host != "" {
		params += fmt.Sprintf(" host=%s", cfg.Host)
		if cfg.Port != 0 {
			params += fmt.Sprintf(" port=%d", cfg.Port)
		}
	}

	return params, nil
}

// PrepareAndStream implements sqldriver.Driver.
func (d *Driver) PrepareAndStream(ctx context.Context, query string, params []any) (sqldriver.Rows, error) {
	rows, err := d.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return &rowsAdapter{rows: rows}, nil
}

// Close implements sqldriver.Driver.
func (d *Driver) Close() {
	d.pool.Close()
}

type rowsAdapter struct {
	rows pgx.Rows
}

func (r *rowsAdapter) Next() bool         { return r.rows.Next() }
func (r *rowsAdapter) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *rowsAdapter) Err() error         { return r.rows.Err() }
func (r *rowsAdapter) Close()             { r.rows.Close() }
