package filter

import (
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
)

func equalityPacket(attr, value string) *ber.Packet {
	p := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagEqualityMatch, nil, "equalityMatch")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "attr"))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, value, "value"))
	return p
}

func presentPacket(attr string) *ber.Packet {
	return ber.NewString(ber.ClassContext, ber.TypePrimitive, tagPresent, attr, "present")
}

func TestDecodeEquality(t *testing.T) {
	f, err := Decode(equalityPacket("sn", "Smith"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Kind != KindEquality || f.Attribute != "sn" || f.Value != "Smith" {
		t.Errorf("unexpected filter: %+v", f)
	}
}

func TestDecodePresent(t *testing.T) {
	f, err := Decode(presentPacket("objectClass"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Kind != KindPresent || f.Attribute != "objectClass" {
		t.Errorf("unexpected filter: %+v", f)
	}
}

func TestDecodeAndOr(t *testing.T) {
	and := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagAnd, nil, "and")
	and.AppendChild(equalityPacket("o", "Company Co."))
	and.AppendChild(presentPacket("sn"))

	f, err := Decode(and)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Kind != KindAnd || len(f.Children) != 2 {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestDecodeSubstring(t *testing.T) {
	sub := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagSubstrings, nil, "substrings")
	sub.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "sn", "attr"))
	substrs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "substrings")
	substrs.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tagSubInitial, "Kar", "initial"))
	sub.AppendChild(substrs)

	f, err := Decode(sub)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Kind != KindSubstring || !f.Substring.HasInitial || f.Substring.Initial != "Kar" {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestDecodeExtensibleMatch(t *testing.T) {
	p := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagExtensibleMatch, nil, "extensibleMatch")
	f, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Kind != KindExtensibleMatch {
		t.Errorf("expected KindExtensibleMatch, got %v", f.Kind)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	p := ber.Encode(ber.ClassContext, ber.TypeConstructed, 42, nil, "?")
	if _, err := Decode(p); err == nil {
		t.Fatal("expected error for unrecognised tag")
	}
}
