package filter

import (
	"fmt"
	"strings"

	"github.com/sql2ldap/sql2ldap/pkg/mapping"
)

// ErrExtensibleMatch is returned whenever translation reaches an
// ExtensibleMatch node; the caller (the search executor) turns this
// into a ProtocolError result for the whole operation.
var ErrExtensibleMatch = fmt.Errorf("filter: extensible match is not supported")

// translator accumulates bound parameters while walking a Filter tree,
// assigning PostgreSQL-style placeholders ($1, $2, ...) in left-to-right
// traversal order.
type translator struct {
	table  *mapping.Table
	params []any
}

// Translate converts an LDAP filter AST into a SQL boolean expression
// plus its ordered parameter vector, per the rules in the search
// translator contract:
//
//   - an attribute absent from the mapping table makes its enclosing
//     sub-filter evaluate to a constant FALSE, so the overall query
//     stays well-formed but matches nothing (the reference behaviour
//     for LDAP's "undefined attribute" semantics);
//   - ExtensibleMatch (or any other unrecognised variant) is rejected
//     outright via ErrExtensibleMatch, since the whole search must then
//     fail with ProtocolError rather than silently narrow its scope.
func Translate(f *Filter, table *mapping.Table) (sql string, params []any, err error) {
	t := &translator{table: table}
	frag, err := t.walk(f)
	if err != nil {
		return "", nil, err
	}
	return frag, t.params, nil
}

func (t *translator) walk(f *Filter) (string, error) {
	if f == nil {
		return "TRUE", nil
	}

	switch f.Kind {
	case KindPresent:
		return t.unary(f.Attribute, func(expr string) string {
			return fmt.Sprintf("(%s) IS NOT NULL", expr)
		})
	case KindEquality:
		return t.comparison(f.Attribute, f.Value, "=")
	case KindGreaterOrEqual:
		return t.comparison(f.Attribute, f.Value, ">=")
	case KindLessOrEqual:
		return t.comparison(f.Attribute, f.Value, "<=")
	case KindApprox:
		// Approximate match is treated as equality; the source this
		// spec follows does not implement phonetic matching.
		return t.comparison(f.Attribute, f.Value, "=")
	case KindSubstring:
		return t.substring(f)
	case KindAnd:
		return t.combine(f.Children, " AND ", "TRUE")
	case KindOr:
		return t.combine(f.Children, " OR ", "FALSE")
	case KindNot:
		inner, err := t.walk(f.Child)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	case KindExtensibleMatch:
		return "", ErrExtensibleMatch
	default:
		return "", ErrExtensibleMatch
	}
}

func (t *translator) combine(children []*Filter, joiner, emptyValue string) (string, error) {
	if len(children) == 0 {
		return emptyValue, nil
	}
	parts := make([]string, 0, len(children))
	for _, c := range children {
		frag, err := t.walk(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	return "(" + strings.Join(parts, joiner) + ")", nil
}

func (t *translator) unary(attr string, build func(expr string) string) (string, error) {
	expr, ok := t.table.Resolve(attr)
	if !ok {
		return "FALSE", nil
	}
	return build(string(expr)), nil
}

func (t *translator) comparison(attr, value, op string) (string, error) {
	expr, ok := t.table.Resolve(attr)
	if !ok {
		return "FALSE", nil
	}
	placeholder := t.bind(value)
	return fmt.Sprintf("(%s) %s %s", expr, op, placeholder), nil
}

// substring renders a LIKE comparison. Treating zero substring parts
// (init, any, and fin all empty/absent) as equivalent to Present is an
// explicit design decision: "(a=*)" and a Substring filter with no
// parts describe the same thing, presence of the attribute.
func (t *translator) substring(f *Filter) (string, error) {
	parts := f.Substring
	if parts == nil || (!parts.HasInitial && len(parts.Any) == 0 && !parts.HasFinal) {
		return t.unary(f.Attribute, func(expr string) string {
			return fmt.Sprintf("(%s) IS NOT NULL", expr)
		})
	}

	expr, ok := t.table.Resolve(f.Attribute)
	if !ok {
		return "FALSE", nil
	}

	var b strings.Builder
	if parts.HasInitial {
		b.WriteString(escapeLike(parts.Initial))
	}
	b.WriteByte('%')
	for _, any := range parts.Any {
		b.WriteString(escapeLike(any))
		b.WriteByte('%')
	}
	if parts.HasFinal {
		b.WriteString(escapeLike(parts.Final))
	}

	placeholder := t.bind(b.String())
	return fmt.Sprintf("(%s) LIKE %s", expr, placeholder), nil
}

// escapeLike escapes the three characters meaningful to SQL LIKE (%, _)
// and the escape character itself (\) in a literal substring fragment,
// so a client-supplied value containing them is matched literally
// rather than as a pattern.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// bind appends value to the parameter vector and returns its
// PostgreSQL placeholder.
func (t *translator) bind(value string) string {
	t.params = append(t.params, value)
	return fmt.Sprintf("$%d", len(t.params))
}
