package protocol

import (
	"context"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sql2ldap/sql2ldap/internal/wire"
)

// bindState is the per-connection LDAP bind state: Unbound or Bound.
// There is no authenticated state beyond anonymous bind, so the state
// machine only needs the two.
type bindState int

const (
	stateUnbound bindState = iota
	stateBound
)

// connection holds all per-connection, task-local state: never shared
// across goroutines except through the cancel map, which is guarded
// by its own mutex for the single cross-goroutine interaction an
// AbandonRequest requires.
type connection struct {
	id    string
	conn  net.Conn
	opts  *Options
	state bindState

	mu     sync.Mutex
	cancel map[int64]context.CancelFunc
}

func (c *connection) serve(ctx context.Context) {
	defer c.conn.Close()

	log := c.opts.Logger.With().Str("conn_id", c.id).Str("remote", c.conn.RemoteAddr().String()).Logger()
	log.Debug().Msg("connection accepted")

	for {
		req, err := wire.ReadRequest(c.conn)
		if err != nil {
			if !isClosedOrEOF(err) {
				log.Warn().Err(err).Msg("malformed frame; closing connection")
			}
			return
		}

		reqLog := log.With().Int64("message_id", req.MessageID).Logger()

		switch req.Kind {
		case wire.OpBind:
			c.handleBind(reqLog, req)
		case wire.OpSearch:
			c.handleSearch(ctx, reqLog, req)
		case wire.OpUnbind:
			reqLog.Debug().Msg("unbind")
			return
		case wire.OpAbandon:
			c.handleAbandon(reqLog, req)
		case wire.OpUnsupported:
			c.writeBindLikeResult(req.MessageID, wire.ResultUnwillingToPerform)
		default:
			reqLog.Warn().Msg("unrecognised operation; closing connection")
			c.writeBindLikeResult(req.MessageID, wire.ResultProtocolError)
			return
		}
	}
}

func (c *connection) writeBindLikeResult(messageID int64, code wire.ResultCode) {
	c.conn.Write(wire.EncodeBindResponse(messageID, code, ""))
}

func (c *connection) registerSearch(messageID int64, cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancel[messageID] = cancel
	c.mu.Unlock()
}

func (c *connection) unregisterSearch(messageID int64) {
	c.mu.Lock()
	delete(c.cancel, messageID)
	c.mu.Unlock()
}

func (c *connection) handleAbandon(log zerolog.Logger, req *wire.Request) {
	c.mu.Lock()
	cancel, ok := c.cancel[req.AbandonID]
	c.mu.Unlock()
	if ok {
		cancel()
		log.Debug().Int64("target_message_id", req.AbandonID).Msg("abandoned in-flight search")
	}
}
