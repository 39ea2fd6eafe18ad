package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/rs/zerolog"

	"github.com/sql2ldap/sql2ldap/internal/tracing"
	"github.com/sql2ldap/sql2ldap/internal/wire"
	"github.com/sql2ldap/sql2ldap/pkg/mapping"
	"github.com/sql2ldap/sql2ldap/pkg/search"
	"github.com/sql2ldap/sql2ldap/pkg/sqldriver/fake"
)

// The helpers below build client-side request frames by hand, mirroring
// internal/wire's decoder field-for-field, so this test exercises the
// real BER encode/decode round trip rather than calling handleBind /
// handleSearch directly.

func envelopeRequest(messageID int64, op *ber.Packet) []byte {
	msg := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPMessage")
	msg.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, messageID, "MessageID"))
	msg.AppendChild(op)
	return msg.Bytes()
}

func anonymousBindRequest(messageID int64) []byte {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, wire.ApplicationBindRequest, nil, "BindRequest")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(3), "version"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "name"))
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, "", "simple"))
	return envelopeRequest(messageID, op)
}

func nonAnonymousBindRequest(messageID int64, dn, password string) []byte {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, wire.ApplicationBindRequest, nil, "BindRequest")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(3), "version"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "name"))
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, password, "simple"))
	return envelopeRequest(messageID, op)
}

func presentFilter(attr string) *ber.Packet {
	return ber.NewString(ber.ClassContext, ber.TypePrimitive, 7, attr, "present")
}

// badFilter builds a filter CHOICE tag outside the recognised 0-9
// range, exercising the filter-decode-failure path.
func badFilter() *ber.Packet {
	return ber.NewString(ber.ClassContext, ber.TypePrimitive, 42, "", "unrecognised")
}

func searchRequest(messageID int64, baseDN string, scope, sizeLimit, timeLimit int64, filter *ber.Packet, attrs []string) []byte {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, wire.ApplicationSearchRequest, nil, "SearchRequest")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, baseDN, "baseObject"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, scope, "scope"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(0), "derefAliases"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, sizeLimit, "sizeLimit"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, timeLimit, "timeLimit"))
	op.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, false, "typesOnly"))
	op.AppendChild(filter)
	attrsPacket := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")
	for _, a := range attrs {
		attrsPacket.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a, "attr"))
	}
	op.AppendChild(attrsPacket)
	return envelopeRequest(messageID, op)
}

func unbindRequest(messageID int64) []byte {
	op := ber.Encode(ber.ClassApplication, ber.TypePrimitive, wire.ApplicationUnbindRequest, nil, "UnbindRequest")
	return envelopeRequest(messageID, op)
}

// resultCodeOf reads an LDAPResult-shaped response (BindResponse or
// SearchResultDone) and returns its resultCode.
func resultCodeOf(t *testing.T, p *ber.Packet) int64 {
	t.Helper()
	if len(p.Children) != 2 {
		t.Fatalf("malformed LDAPMessage: %d children", len(p.Children))
	}
	result := p.Children[1]
	if len(result.Children) == 0 {
		t.Fatalf("malformed LDAPResult: no children")
	}
	code, ok := result.Children[0].Value.(int64)
	if !ok {
		t.Fatalf("resultCode is not an integer: %+v", result.Children[0].Value)
	}
	return code
}

func newTestServer(t *testing.T, ex *search.Executor) (net.Conn, context.CancelFunc) {
	t.Helper()

	logger := zerolog.Nop()
	tracer := tracing.NewTracer(tracing.NewConfig(false, &logger))

	client, server := net.Pipe()

	opts := newOptions(
		Logger(logger),
		Tracer(tracer),
		Executor(search.NewHandle(ex)),
	)

	c := &connection{
		id:     "test",
		conn:   server,
		opts:   &opts,
		cancel: make(map[int64]context.CancelFunc),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.serve(ctx)

	t.Cleanup(func() {
		cancel()
		client.Close()
	})

	return client, cancel
}

func buildExecutor(t *testing.T) *search.Executor {
	t.Helper()
	tbl, err := mapping.Build(map[string]string{
		"cn":          "CAST(id AS TEXT)",
		"objectClass": "'inetOrgPerson'",
		"sn":          "surname",
	})
	if err != nil {
		t.Fatalf("mapping.Build: %v", err)
	}
	driver := &fake.Driver{
		Rows: []fake.Row{
			{"cn": "7", "objectClass": "inetOrgPerson", "sn": "Smith"},
		},
	}
	return &search.Executor{Driver: driver, Table: tbl, Suffix: "dc=example,dc=com", Name: "people"}
}

func TestConnectionAnonymousBindThenSearch(t *testing.T) {
	client, _ := newTestServer(t, buildExecutor(t))

	if _, err := client.Write(anonymousBindRequest(1)); err != nil {
		t.Fatalf("write bind: %v", err)
	}
	resp, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read bind response: %v", err)
	}
	if code := resultCodeOf(t, resp); code != int64(wire.ResultSuccess) {
		t.Fatalf("bind result = %d, want Success", code)
	}

	req := searchRequest(2, "dc=example,dc=com", 2, 0, 0, presentFilter("objectClass"), nil)
	if _, err := client.Write(req); err != nil {
		t.Fatalf("write search: %v", err)
	}

	entry, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read search entry: %v", err)
	}
	if entry.Children[1].Tag != wire.ApplicationSearchResultEntry {
		t.Fatalf("expected SearchResultEntry, got tag %d", entry.Children[1].Tag)
	}
	dn, _ := entry.Children[1].Children[0].Value.(string)
	if dn != "cn=7,dc=example,dc=com" {
		t.Errorf("dn = %q", dn)
	}

	done, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read search done: %v", err)
	}
	if code := resultCodeOf(t, done); code != int64(wire.ResultSuccess) {
		t.Fatalf("search done code = %d, want Success", code)
	}
}

func TestConnectionNonAnonymousBindRejected(t *testing.T) {
	client, _ := newTestServer(t, buildExecutor(t))

	if _, err := client.Write(nonAnonymousBindRequest(1, "cn=admin", "x")); err != nil {
		t.Fatalf("write bind: %v", err)
	}
	resp, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read bind response: %v", err)
	}
	if code := resultCodeOf(t, resp); code != int64(wire.ResultAuthMethodNotSupported) {
		t.Fatalf("bind result = %d, want AuthMethodNotSupported", code)
	}

	// Connection stays open: a subsequent anonymous bind still succeeds.
	if _, err := client.Write(anonymousBindRequest(2)); err != nil {
		t.Fatalf("write second bind: %v", err)
	}
	resp2, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read second bind response: %v", err)
	}
	if code := resultCodeOf(t, resp2); code != int64(wire.ResultSuccess) {
		t.Fatalf("second bind result = %d, want Success", code)
	}
}

func TestConnectionSearchWithUnrecognisedFilterTagStaysOpen(t *testing.T) {
	client, _ := newTestServer(t, buildExecutor(t))

	if _, err := client.Write(anonymousBindRequest(1)); err != nil {
		t.Fatalf("write bind: %v", err)
	}
	if _, err := ber.ReadPacket(client); err != nil {
		t.Fatalf("read bind response: %v", err)
	}

	req := searchRequest(2, "dc=example,dc=com", 2, 0, 0, badFilter(), nil)
	if _, err := client.Write(req); err != nil {
		t.Fatalf("write search: %v", err)
	}

	done, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read search done: %v", err)
	}
	if done.Children[1].Tag != wire.ApplicationSearchResultDone {
		t.Fatalf("expected SearchResultDone, got tag %d", done.Children[1].Tag)
	}
	if code := resultCodeOf(t, done); code != int64(wire.ResultProtocolError) {
		t.Fatalf("search done code = %d, want ProtocolError", code)
	}

	// The connection must stay open: a subsequent search still works.
	req2 := searchRequest(3, "dc=example,dc=com", 2, 0, 0, presentFilter("objectClass"), nil)
	if _, err := client.Write(req2); err != nil {
		t.Fatalf("write second search: %v", err)
	}
	entry, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read second search entry: %v", err)
	}
	if entry.Children[1].Tag != wire.ApplicationSearchResultEntry {
		t.Fatalf("expected SearchResultEntry, got tag %d", entry.Children[1].Tag)
	}
	done2, err := ber.ReadPacket(client)
	if err != nil {
		t.Fatalf("read second search done: %v", err)
	}
	if code := resultCodeOf(t, done2); code != int64(wire.ResultSuccess) {
		t.Fatalf("second search done code = %d, want Success", code)
	}
}

func TestConnectionUnbindClosesConnection(t *testing.T) {
	client, _ := newTestServer(t, buildExecutor(t))

	if _, err := client.Write(unbindRequest(1)); err != nil {
		t.Fatalf("write unbind: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Fatal("expected connection to close after UnbindRequest, got data instead")
	}
}
