// Package filter implements the LDAP filter AST and its translation
// into a parameterised SQL WHERE fragment.
//
// The AST shape is grounded on the recursive filter-variant idiom used
// across the retrieval pack (a tagged struct with a Kind enum and
// Children/Child/Substring fields); unlike an in-memory evaluator, our
// Translate walks the tree to emit SQL text and a parameter vector
// instead of testing an entry directly.
package filter

import "fmt"

// Kind identifies which LDAP filter variant a Filter node represents.
type Kind int

const (
	KindPresent Kind = iota
	KindEquality
	KindSubstring
	KindGreaterOrEqual
	KindLessOrEqual
	KindApprox
	KindAnd
	KindOr
	KindNot
	KindExtensibleMatch
)

// Filter is a node in the recursive LDAP filter AST described in the
// data model: Present, Equality, Substring, GreaterOrEqual, LessOrEqual,
// Approx, And, Or, Not, and the always-rejected ExtensibleMatch.
type Filter struct {
	Kind Kind

	// Attribute is set for Present, Equality, Substring,
	// GreaterOrEqual, LessOrEqual, and Approx.
	Attribute string

	// Value is the comparison value for Equality, GreaterOrEqual,
	// LessOrEqual, and Approx.
	Value string

	// Substring holds the decomposed substring-match parts for
	// KindSubstring.
	Substring *SubstringParts

	// Children holds the operands of And/Or (possibly empty).
	Children []*Filter

	// Child holds the single operand of Not.
	Child *Filter
}

// SubstringParts are the components of a substring filter:
// (attr=initial*any1*any2*...*final), with Initial and Final optional.
type SubstringParts struct {
	Initial    string
	HasInitial bool
	Any        []string
	Final      string
	HasFinal   bool
}

func Present(attr string) *Filter { return &Filter{Kind: KindPresent, Attribute: attr} }

func Equality(attr, value string) *Filter {
	return &Filter{Kind: KindEquality, Attribute: attr, Value: value}
}

func GreaterOrEqual(attr, value string) *Filter {
	return &Filter{Kind: KindGreaterOrEqual, Attribute: attr, Value: value}
}

func LessOrEqual(attr, value string) *Filter {
	return &Filter{Kind: KindLessOrEqual, Attribute: attr, Value: value}
}

func Approx(attr, value string) *Filter {
	return &Filter{Kind: KindApprox, Attribute: attr, Value: value}
}

func Substring(attr string, parts *SubstringParts) *Filter {
	return &Filter{Kind: KindSubstring, Attribute: attr, Substring: parts}
}

func And(children ...*Filter) *Filter { return &Filter{Kind: KindAnd, Children: children} }

func Or(children ...*Filter) *Filter { return &Filter{Kind: KindOr, Children: children} }

func Not(child *Filter) *Filter { return &Filter{Kind: KindNot, Child: child} }

func ExtensibleMatch() *Filter { return &Filter{Kind: KindExtensibleMatch} }

// String renders a filter back to RFC 4515-ish text, useful for log
// messages and test failure output.
func (f *Filter) String() string {
	if f == nil {
		return "(?)"
	}
	switch f.Kind {
	case KindPresent:
		return fmt.Sprintf("(%s=*)", f.Attribute)
	case KindEquality:
		return fmt.Sprintf("(%s=%s)", f.Attribute, f.Value)
	case KindGreaterOrEqual:
		return fmt.Sprintf("(%s>=%s)", f.Attribute, f.Value)
	case KindLessOrEqual:
		return fmt.Sprintf("(%s<=%s)", f.Attribute, f.Value)
	case KindApprox:
		return fmt.Sprintf("(%s~=%s)", f.Attribute, f.Value)
	case KindSubstring:
		return fmt.Sprintf("(%s=*substring*)", f.Attribute)
	case KindNot:
		return fmt.Sprintf("(!%s)", f.Child.String())
	case KindAnd:
		s := "(&"
		for _, c := range f.Children {
			s += c.String()
		}
		return s + ")"
	case KindOr:
		s := "(|"
		for _, c := range f.Children {
			s += c.String()
		}
		return s + ")"
	default:
		return "(?extensible?)"
	}
}
