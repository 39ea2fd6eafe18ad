// Package wire owns the LDAP BER wire format: reading one frame at a
// time off a connection, decoding it into a typed request, and
// encoding typed responses back into BER for the connection to write.
package wire

import (
	"fmt"
	"io"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sql2ldap/sql2ldap/pkg/filter"
)

// OpKind distinguishes the LDAP operations this server understands by
// shape, folding every write operation into OpUnsupported rather than
// naming each of them individually.
type OpKind int

const (
	OpBind OpKind = iota
	OpUnbind
	OpSearch
	OpAbandon
	OpUnsupported
	OpUnknown
)

// Request is one decoded LDAPMessage: an envelope (message id) plus
// the decoded protocolOp payload.
type Request struct {
	MessageID int64
	Kind      OpKind

	// Bind
	BindDN       string
	BindPassword string
	BindSimple   bool

	// Search
	Search SearchRequest

	// Abandon
	AbandonID int64
}

// SearchRequest is the decoded payload of a SearchRequest protocolOp.
type SearchRequest struct {
	BaseDN       string
	Scope        int64
	SizeLimit    int64
	TimeLimit    int64
	Attributes   []string
	Filter       *filter.Filter

	// FilterErr holds a filter-decode failure (an unrecognised filter
	// tag, per RFC 4511 section 4.5.1.7) when Filter could not be
	// decoded. This is an operation-level failure, not a malformed
	// frame: decodeMessage still returns a usable Request so the
	// caller can answer this one search with ProtocolError and keep
	// the connection open, per spec.md section 4.2's failure modes.
	FilterErr error
}

// ReadRequest reads one full BER frame from r and decodes it into a
// Request. io.EOF (or a wrapped variant) propagates unchanged so
// callers can distinguish a clean disconnect from a malformed frame.
func ReadRequest(r io.Reader) (*Request, error) {
	packet, err := ber.ReadPacket(r)
	if err != nil {
		return nil, err
	}
	return decodeMessage(packet)
}

func decodeMessage(p *ber.Packet) (*Request, error) {
	if len(p.Children) < 2 {
		return nil, fmt.Errorf("wire: malformed LDAPMessage: expected at least 2 elements, got %d", len(p.Children))
	}

	messageID, ok := p.Children[0].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("wire: malformed LDAPMessage: messageID is not an integer")
	}

	op := p.Children[1]

	req := &Request{MessageID: messageID}

	switch op.Tag {
	case ApplicationBindRequest:
		if err := decodeBindRequest(op, req); err != nil {
			return nil, err
		}
	case ApplicationUnbindRequest:
		req.Kind = OpUnbind
	case ApplicationSearchRequest:
		if err := decodeSearchRequest(op, req); err != nil {
			return nil, err
		}
	case ApplicationAbandonRequest:
		id, ok := op.Value.(int64)
		if !ok {
			return nil, fmt.Errorf("wire: malformed AbandonRequest")
		}
		req.Kind = OpAbandon
		req.AbandonID = id
	case ApplicationModifyRequest, ApplicationAddRequest, ApplicationDelRequest,
		ApplicationModifyDNRequest, ApplicationCompareRequest, ApplicationExtendedRequest:
		req.Kind = OpUnsupported
	default:
		req.Kind = OpUnknown
	}

	return req, nil
}

// decodeBindRequest decodes the BindRequest ::= SEQUENCE { version,
// name, authentication CHOICE { simple [0], ... } }. Only the simple
// authentication form is meaningfully interpreted; any other form is
// still decoded far enough to extract the bind DN, which the protocol
// layer needs to reject it correctly.
func decodeBindRequest(op *ber.Packet, req *Request) error {
	req.Kind = OpBind
	if len(op.Children) < 3 {
		return fmt.Errorf("wire: malformed BindRequest")
	}
	req.BindDN, _ = op.Children[1].Value.(string)

	auth := op.Children[2]
	const tagSimple = 0
	if auth.Tag == tagSimple {
		req.BindSimple = true
		req.BindPassword = stringValue(auth)
	}
	return nil
}

// RFC 4511 section 4.5.1 SearchRequest field indices within the
// protocolOp SEQUENCE.
const (
	searchFieldBaseObject   = 0
	searchFieldScope        = 1
	searchFieldDerefAliases = 2
	searchFieldSizeLimit    = 3
	searchFieldTimeLimit    = 4
	searchFieldTypesOnly    = 5
	searchFieldFilter       = 6
	searchFieldAttributes   = 7
)

func decodeSearchRequest(op *ber.Packet, req *Request) error {
	req.Kind = OpSearch
	if len(op.Children) < 8 {
		return fmt.Errorf("wire: malformed SearchRequest")
	}

	req.Search.BaseDN, _ = op.Children[searchFieldBaseObject].Value.(string)
	if scope, ok := op.Children[searchFieldScope].Value.(int64); ok {
		req.Search.Scope = scope
	}
	if sl, ok := op.Children[searchFieldSizeLimit].Value.(int64); ok {
		req.Search.SizeLimit = sl
	}
	if tl, ok := op.Children[searchFieldTimeLimit].Value.(int64); ok {
		req.Search.TimeLimit = tl
	}

	f, err := filter.Decode(op.Children[searchFieldFilter])
	if err != nil {
		// An unrecognised filter tag is this search's problem, not
		// the frame's: the envelope and every other field decoded
		// fine, so the connection stays open and the protocol layer
		// answers this one message with ProtocolError.
		req.Search.FilterErr = err
		return nil
	}
	req.Search.Filter = f

	for _, a := range op.Children[searchFieldAttributes].Children {
		req.Search.Attributes = append(req.Search.Attributes, stringValue(a))
	}

	return nil
}

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
