package wire

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

// Entry is the wire-ready form of one synthesised LDAP entry: a DN
// plus attribute name to value-list pairs, already flattened to
// strings by the search executor.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

func envelope(messageID int64) *ber.Packet {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPMessage")
	packet.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, messageID, "MessageID"))
	return packet
}

func ldapResult(appTag ber.Tag, messageID int64, code ResultCode, diagnostic string) *ber.Packet {
	packet := envelope(messageID)
	result := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appTag, nil, "LDAPResult")
	result.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(code), "resultCode"))
	result.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "matchedDN"))
	result.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, diagnostic, "diagnosticMessage"))
	packet.AppendChild(result)
	return packet
}

// EncodeBindResponse builds a BindResponse LDAPMessage.
func EncodeBindResponse(messageID int64, code ResultCode, diagnostic string) []byte {
	return ldapResult(ApplicationBindResponse, messageID, code, diagnostic).Bytes()
}

// EncodeSearchResultDone builds a SearchResultDone LDAPMessage.
func EncodeSearchResultDone(messageID int64, code ResultCode, diagnostic string) []byte {
	return ldapResult(ApplicationSearchResultDone, messageID, code, diagnostic).Bytes()
}

// EncodeSearchResultEntry builds a SearchResultEntry LDAPMessage
// carrying one synthesised entry.
func EncodeSearchResultEntry(messageID int64, e Entry) []byte {
	packet := envelope(messageID)

	entry := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchResultEntry, nil, "SearchResultEntry")
	entry.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, e.DN, "objectName"))

	attrs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")
	for name, values := range e.Attributes {
		partialAttr := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "PartialAttribute")
		partialAttr.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, name, "type"))
		vals := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		for _, v := range values {
			vals.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "value"))
		}
		partialAttr.AppendChild(vals)
		attrs.AppendChild(partialAttr)
	}
	entry.AppendChild(attrs)

	packet.AppendChild(entry)
	return packet.Bytes()
}
