package filter

import (
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// RFC 4511 section 4.5.1.7 filter CHOICE tags.
const (
	tagAnd             = 0
	tagOr              = 1
	tagNot             = 2
	tagEqualityMatch   = 3
	tagSubstrings      = 4
	tagGreaterOrEqual  = 5
	tagLessOrEqual     = 6
	tagPresent         = 7
	tagApproxMatch     = 8
	tagExtensibleMatch = 9
)

// Substring filter inner CHOICE tags.
const (
	tagSubInitial = 0
	tagSubAny     = 1
	tagSubFinal   = 2
)

// Decode converts a BER-decoded filter packet (the context-tagged CHOICE
// that makes up a SearchRequest's filter field) into our Filter AST.
func Decode(p *ber.Packet) (*Filter, error) {
	if p == nil {
		return nil, fmt.Errorf("filter: nil packet")
	}

	switch p.Tag {
	case tagAnd:
		children, err := decodeChildren(p)
		if err != nil {
			return nil, err
		}
		return And(children...), nil
	case tagOr:
		children, err := decodeChildren(p)
		if err != nil {
			return nil, err
		}
		return Or(children...), nil
	case tagNot:
		if len(p.Children) != 1 {
			return nil, fmt.Errorf("filter: NOT must have exactly one child")
		}
		child, err := Decode(p.Children[0])
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	case tagEqualityMatch:
		attr, val, err := decodeAttributeValueAssertion(p)
		if err != nil {
			return nil, err
		}
		return Equality(attr, val), nil
	case tagGreaterOrEqual:
		attr, val, err := decodeAttributeValueAssertion(p)
		if err != nil {
			return nil, err
		}
		return GreaterOrEqual(attr, val), nil
	case tagLessOrEqual:
		attr, val, err := decodeAttributeValueAssertion(p)
		if err != nil {
			return nil, err
		}
		return LessOrEqual(attr, val), nil
	case tagApproxMatch:
		attr, val, err := decodeAttributeValueAssertion(p)
		if err != nil {
			return nil, err
		}
		return Approx(attr, val), nil
	case tagPresent:
		return Present(stringValue(p)), nil
	case tagSubstrings:
		return decodeSubstring(p)
	case tagExtensibleMatch:
		return ExtensibleMatch(), nil
	default:
		return nil, fmt.Errorf("filter: unrecognised filter tag %d", p.Tag)
	}
}

func decodeChildren(p *ber.Packet) ([]*Filter, error) {
	children := make([]*Filter, 0, len(p.Children))
	for _, c := range p.Children {
		f, err := Decode(c)
		if err != nil {
			return nil, err
		}
		children = append(children, f)
	}
	return children, nil
}

// decodeAttributeValueAssertion decodes the two-element SEQUENCE {
// attributeDesc, assertionValue } shared by equalityMatch,
// greaterOrEqual, lessOrEqual, and approxMatch.
func decodeAttributeValueAssertion(p *ber.Packet) (attr, value string, err error) {
	if len(p.Children) != 2 {
		return "", "", fmt.Errorf("filter: malformed attribute-value assertion")
	}
	return stringValue(p.Children[0]), stringValue(p.Children[1]), nil
}

func decodeSubstring(p *ber.Packet) (*Filter, error) {
	if len(p.Children) != 2 {
		return nil, fmt.Errorf("filter: malformed substring filter")
	}
	attr := stringValue(p.Children[0])

	parts := &SubstringParts{}
	for _, sub := range p.Children[1].Children {
		switch sub.Tag {
		case tagSubInitial:
			parts.Initial = stringValue(sub)
			parts.HasInitial = true
		case tagSubAny:
			parts.Any = append(parts.Any, stringValue(sub))
		case tagSubFinal:
			parts.Final = stringValue(sub)
			parts.HasFinal = true
		default:
			return nil, fmt.Errorf("filter: unrecognised substring part tag %d", sub.Tag)
		}
	}

	return Substring(attr, parts), nil
}

// stringValue extracts the textual content of a primitive BER packet,
// tolerating both the eagerly-parsed Value the decoder fills in for
// universal types and the raw byte buffer it leaves for context-tagged
// primitives it doesn't recognise.
func stringValue(p *ber.Packet) string {
	if p == nil {
		return ""
	}
	if s, ok := p.Value.(string); ok {
		return s
	}
	if b, ok := p.Value.([]byte); ok {
		return string(b)
	}
	if p.Data != nil {
		return string(p.Data.Bytes())
	}
	return ""
}
