// Package protocol owns the TCP listener, the per-connection LDAP
// state machine, and operation dispatch (bind/search/unbind/abandon).
// It is the thinnest possible layer atop internal/wire: wire turns
// bytes into typed requests and responses back into bytes; protocol
// decides what a request means and when a connection's lifecycle ends.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
)

// Server accepts TCP connections and runs one goroutine per
// connection; Go's own scheduler provides the worker-pool behaviour
// the design calls for; GOMAXPROCS (set from configuration at
// startup, outside this package) bounds how many run truly
// concurrently.
type Server struct {
	opts Options

	listener net.Listener
}

// NewServer builds a Server from the supplied options. It does not
// bind a listener; call ListenAndServe for that.
func NewServer(opts ...Option) *Server {
	return &Server{opts: newOptions(opts...)}
}

// ListenAndServe binds the configured address and serves connections
// until ctx is cancelled or a fatal accept error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("protocol: listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = ln

	s.opts.Logger.Info().Str("address", s.opts.Addr).Msg("LDAP server listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("protocol: accept: %w", err)
		}

		c := &connection{
			id:     uuid.NewString(),
			conn:   conn,
			opts:   &s.opts,
			cancel: make(map[int64]context.CancelFunc),
		}
		go c.serve(ctx)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// isClosedOrEOF reports whether err signals an ordinary connection
// teardown rather than a protocol-level failure worth logging loudly.
func isClosedOrEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
