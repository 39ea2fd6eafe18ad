// Package mapping implements the mapping table: the declarative bridge
// between LDAP attribute names and the SQL expressions that produce
// their values from a row of the configured table.
//
// Grounded on the attribute-matching idiom used throughout the teacher
// codebase (a package-level compiled regexp classifying shapes of
// strings), adapted here to classify SQL expressions as literal or
// dynamic instead of parsing "(attr=value)" filter clauses.
package mapping

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// literalExpr matches a single SQL string literal: '...', with '' as the
// only permitted internal escape of a quote.
var literalExpr = regexp.MustCompile(`^'(?:[^']|'')*'$`)

// Expr is an opaque SQL fragment supplied by the operator. It is never
// interpreted, only embedded verbatim into generated SQL text.
type Expr string

// IsLiteral reports whether the expression matches the single-quoted
// SQL string literal grammar, in which case it can be evaluated without
// touching the database when only literal attributes are requested.
// Implementations are free to ignore this optimisation opportunity.
func (e Expr) IsLiteral() bool {
	return literalExpr.MatchString(strings.TrimSpace(string(e)))
}

// entry is one mapping table row: the case-preserving attribute name
// plus its declaration order.
type entry struct {
	name  string
	expr  Expr
	order int
}

// Table is the validated, immutable mapping table built once from
// config.Config.Mappings and shared by reference across every
// connection and search.
type Table struct {
	byLower map[string]*entry
	order   []*entry
}

// Build constructs a Table from validated configuration. Config.Validate
// is assumed to already have enforced the presence of "cn" and
// "objectClass"; Build re-checks defensively since a Table can in
// principle be built directly by callers (e.g. tests) bypassing
// config.Validate.
func Build(mappings map[string]string) (*Table, error) {
	t := &Table{byLower: make(map[string]*entry, len(mappings))}

	// Deterministic order: map iteration order is not stable, so sort
	// mapping names before assigning declaration order. This only
	// matters for projection-list and placeholder-adjacent ordering
	// concerns in tests; it has no semantic effect on query results.
	names := make([]string, 0, len(mappings))
	for name := range mappings {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		lower := strings.ToLower(name)
		if _, dup := t.byLower[lower]; dup {
			return nil, fmt.Errorf("mapping: duplicate attribute %q (case-insensitive)", name)
		}
		e := &entry{name: name, expr: Expr(mappings[name]), order: i}
		t.byLower[lower] = e
		t.order = append(t.order, e)
	}

	if _, ok := t.byLower["cn"]; !ok {
		return nil, fmt.Errorf("mapping: missing required 'cn' attribute")
	}
	if _, ok := t.byLower["objectclass"]; !ok {
		return nil, fmt.Errorf("mapping: missing required 'objectClass' attribute")
	}

	return t, nil
}

// Resolve looks up an attribute's SQL expression case-insensitively. ok
// is false when the attribute is not present in the mapping table.
func (t *Table) Resolve(attr string) (expr Expr, ok bool) {
	e, found := t.byLower[strings.ToLower(attr)]
	if !found {
		return "", false
	}
	return e.expr, true
}

// IterDynamic returns every mapped (attr, expr) pair sorted by attribute
// name (byte-wise, as Build orders them), used to build the SELECT
// projection list. The order in which the mappings were declared in the
// configuration file is not kept.
func (t *Table) IterDynamic() []struct {
	Attr string
	Expr Expr
} {
	out := make([]struct {
		Attr string
		Expr Expr
	}, 0, len(t.order))
	for _, e := range t.order {
		out = append(out, struct {
			Attr string
			Expr Expr
		}{Attr: e.name, Expr: e.expr})
	}
	return out
}

// CnExpr returns the mapping expression that yields the cn/RDN value.
func (t *Table) CnExpr() Expr {
	return t.byLower["cn"].expr
}

// ObjectClassExpr returns the mapping expression that yields the
// objectClass value(s).
func (t *Table) ObjectClassExpr() Expr {
	return t.byLower["objectclass"].expr
}

// CnName and ObjectClassName return the attribute name exactly as
// declared (case preserved), for use as a SQL column alias.
func (t *Table) CnName() string { return t.byLower["cn"].name }

func (t *Table) ObjectClassName() string { return t.byLower["objectclass"].name }

// Has reports whether attr is present, case-insensitively.
func (t *Table) Has(attr string) bool {
	_, ok := t.byLower[strings.ToLower(attr)]
	return ok
}
