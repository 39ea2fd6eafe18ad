package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sql2ldap/sql2ldap/internal/errs"
	"github.com/sql2ldap/sql2ldap/pkg/filter"
	"github.com/sql2ldap/sql2ldap/pkg/mapping"
	"github.com/sql2ldap/sql2ldap/pkg/sqldriver"
)

// ErrAbandoned is returned by Execute when the search context was
// cancelled by an AbandonRequest (or a client disconnect) rather than
// by a time limit or a driver failure. Callers must not send a
// SearchResultDone in this case: the protocol's AbandonRequest
// handling promises no terminal response for the abandoned id.
var ErrAbandoned = errors.New("search: abandoned")

// EntryFunc receives one synthesised entry as it is produced, letting
// the protocol layer stream SearchResultEntry messages as rows arrive
// instead of buffering the whole result set in memory.
type EntryFunc func(Entry) error

// Executor assembles and runs one search request against the
// configured table through a sqldriver.Driver.
type Executor struct {
	Driver sqldriver.Driver
	Table  *mapping.Table
	Suffix string
	Name   string // SQL table name
}

// Execute runs req, invoking emit for every synthesised entry in row
// order, and returns the terminal outcome. emit errors abort the
// stream and propagate as the returned error.
func (ex *Executor) Execute(ctx context.Context, req *Request, emit EntryFunc) (ResultCode, error) {
	if !isSuffixMatch(req.BaseDN, ex.Suffix) {
		return ResultSuccess, nil
	}
	if req.Scope == ScopeBaseObject {
		return ResultSuccess, nil
	}

	cols := ex.projection(req.Attributes)

	sqlFragment, params, err := filter.Translate(req.Filter, ex.Table)
	if err != nil {
		return ResultProtocolError, errs.NewProtocolError("%s", err)
	}

	query := ex.buildQuery(cols, sqlFragment)

	if req.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeLimit)*time.Second)
		defer cancel()
	}

	rows, err := ex.Driver.PrepareAndStream(ctx, query, params)
	if err != nil {
		return ResultOperationsError, errs.NewTransientSQLError(err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		entry, err := ex.scanEntry(rows, cols)
		if err != nil {
			return ResultOperationsError, errs.NewTransientSQLError(err)
		}

		if err := emit(entry); err != nil {
			return ResultOperationsError, err
		}

		count++
		if req.SizeLimit > 0 && count >= req.SizeLimit {
			return ResultSizeLimitExceeded, nil
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return ResultSuccess, ErrAbandoned
	}

	if err := rows.Err(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ResultTimeLimitExceeded, nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return ResultSuccess, ErrAbandoned
		}
		return ResultOperationsError, errs.NewTransientSQLError(err)
	}

	return ResultSuccess, nil
}

// projection determines which mapped attributes to select, honouring
// the empty/"*"/"1.1" request-attribute conventions. cn and
// objectClass are always included: cn to build the DN, objectClass
// because it is unconditionally returned on every entry.
func (ex *Executor) projection(requested []string) []string {
	all := ex.Table.IterDynamic()

	wantAll := len(requested) == 0
	noAttrs := false
	wanted := make(map[string]bool, len(requested))
	for _, a := range requested {
		switch a {
		case "*":
			wantAll = true
		case "1.1":
			noAttrs = true
		default:
			wanted[strings.ToLower(a)] = true
		}
	}

	cols := make([]string, 0, len(all))
	for _, d := range all {
		lower := strings.ToLower(d.Attr)
		if lower == "cn" || lower == "objectclass" {
			cols = append(cols, d.Attr)
			continue
		}
		if noAttrs {
			continue
		}
		if wantAll || wanted[lower] {
			cols = append(cols, d.Attr)
		}
	}
	return cols
}

func (ex *Executor) buildQuery(cols []string, whereFragment string) string {
	projected := make([]string, 0, len(cols))
	for _, c := range cols {
		expr, _ := ex.Table.Resolve(c)
		projected = append(projected, fmt.Sprintf("%s AS %s", string(expr), quoteIdent(c)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(projected, ", "), ex.Name)
	if whereFragment != "TRUE" {
		query += " WHERE " + whereFragment
	}
	return query
}

// quoteIdent wraps an attribute name for use as a column alias. Mapped
// attribute names come only from validated configuration, never from
// client input, but are still double-quoted defensively so names that
// collide with SQL keywords remain valid identifiers.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (ex *Executor) scanEntry(rows sqldriver.Rows, cols []string) (Entry, error) {
	dest := make([]any, len(cols))
	vals := make([]sql.NullString, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return Entry{}, err
	}

	var cnValue string
	attrs := make(map[string][]string, len(cols))
	for i, col := range cols {
		if !vals[i].Valid {
			continue
		}
		lower := strings.ToLower(col)
		if lower == "cn" {
			cnValue = vals[i].String
		}
		attrs[col] = []string{vals[i].String}
	}

	return Entry{
		DN:         BuildDN(cnValue, ex.Suffix),
		Attributes: attrs,
	}, nil
}
