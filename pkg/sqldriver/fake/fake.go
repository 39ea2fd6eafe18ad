// Package fake provides an in-memory sqldriver.Driver for exercising
// the search executor without a live Postgres instance.
package fake

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sql2ldap/sql2ldap/pkg/sqldriver"
)

// Row is a single synthetic result row, keyed by column name.
type Row map[string]any

// Driver is a fake sqldriver.Driver backed by a static table of rows.
// Query and params are ignored by default; set Exec to inspect them
// and decide what to return.
type Driver struct {
	Rows []Row

	// Exec, if set, is called instead of returning Rows directly,
	// letting a test assert on the query text and bound params.
	Exec func(ctx context.Context, query string, params []any) ([]Row, error)

	Closed bool
}

// columnAliasPattern extracts the AS "alias" aliases the executor emits
// for every projected column, in the order they appear in the SELECT
// list, so the fake can scan rows in the same order a real driver
// would return them without needing to parse SQL properly.
var columnAliasPattern = regexp.MustCompile(`AS "((?:[^"]|"")*)"`)

func columnsFromQuery(query string) []string {
	matches := columnAliasPattern.FindAllStringSubmatch(query, -1)
	cols := make([]string, 0, len(matches))
	for _, m := range matches {
		cols = append(cols, m[1])
	}
	return cols
}

func (d *Driver) PrepareAndStream(ctx context.Context, query string, params []any) (sqldriver.Rows, error) {
	rows := d.Rows
	if d.Exec != nil {
		var err error
		rows, err = d.Exec(ctx, query, params)
		if err != nil {
			return nil, err
		}
	}
	return &Rows{ctx: ctx, rows: rows, index: -1, cols: columnsFromQuery(query)}, nil
}

func (d *Driver) Close() { d.Closed = true }

// Rows implements sqldriver.Rows over a fixed slice of Row, honouring
// context cancellation between rows the way a real streaming cursor
// would.
type Rows struct {
	ctx    context.Context
	rows   []Row
	index  int
	cols   []string
	err    error
	closed bool
}

func (r *Rows) Next() bool {
	if r.err != nil || r.closed {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return false
	}
	r.index++
	return r.index < len(r.rows)
}

// Scan copies the current row's columns into dest, in the order
// PrepareAndStream derived from the query's column aliases (or the
// order SetCols last established, if a test overrides it).
func (r *Rows) Scan(dest ...any) error {
	if r.index < 0 || r.index >= len(r.rows) {
		return fmt.Errorf("fake: Scan called out of range")
	}
	row := r.rows[r.index]
	cols := r.cols
	if cols == nil {
		cols = make([]string, 0, len(row))
		for k := range row {
			cols = append(cols, k)
		}
	}
	if len(cols) != len(dest) {
		return fmt.Errorf("fake: Scan expected %d destinations, got %d", len(cols), len(dest))
	}
	for i, col := range cols {
		if err := assign(dest[i], row[col]); err != nil {
			return err
		}
	}
	return nil
}

// SetCols fixes the column projection order used by Scan.
func (r *Rows) SetCols(cols []string) { r.cols = cols }

func (r *Rows) Err() error { return r.err }

func (r *Rows) Close() { r.closed = true }

// scanner is the database/sql convention fake rows honour so callers
// can scan into sql.NullString and similar nullable wrapper types
// without the fake needing to know about them by name.
type scanner interface {
	Scan(value any) error
}

func assign(dest any, value any) error {
	if s, ok := dest.(scanner); ok {
		return s.Scan(value)
	}

	switch d := dest.(type) {
	case *any:
		*d = value
		return nil
	case *string:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("fake: cannot assign %T into *string", value)
		}
		*d = s
		return nil
	case **string:
		if value == nil {
			*d = nil
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("fake: cannot assign %T into **string", value)
		}
		*d = &s
		return nil
	default:
		return fmt.Errorf("fake: unsupported scan destination %T", dest)
	}
}
