package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sql2ldap/sql2ldap/internal/errs"
	"github.com/sql2ldap/sql2ldap/internal/wire"
	"github.com/sql2ldap/sql2ldap/pkg/search"
)

func (c *connection) handleSearch(ctx context.Context, log zerolog.Logger, req *wire.Request) {
	start := time.Now()
	code := search.ResultSuccess
	defer func() {
		if c.opts.Monitor != nil {
			c.opts.Monitor.SetResponseTimeMetric(
				map[string]string{"operation": "search", "status": fmt.Sprintf("%v", code)},
				time.Since(start).Seconds(),
			)
		}
	}()

	if req.Search.FilterErr != nil {
		code = search.ResultProtocolError
		err := errs.NewProtocolError("decoding search filter: %s", req.Search.FilterErr)
		log.Warn().Err(err).Msg("search request carried an unrecognised filter; failing the operation")
		c.conn.Write(wire.EncodeSearchResultDone(req.MessageID, wire.ResultCode(code), ""))
		return
	}

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.registerSearch(req.MessageID, cancel)
	defer c.unregisterSearch(req.MessageID)

	sreq := &search.Request{
		BaseDN:     req.Search.BaseDN,
		Scope:      search.Scope(req.Search.Scope),
		SizeLimit:  int(req.Search.SizeLimit),
		TimeLimit:  int(req.Search.TimeLimit),
		Attributes: req.Search.Attributes,
		Filter:     req.Search.Filter,
	}

	spanCtx, span := c.opts.Tracer.Start(searchCtx, "search")
	span.SetAttributes(attribute.String("ldap.base_dn", sreq.BaseDN))
	defer span.End()

	log.Debug().Str("base_dn", sreq.BaseDN).Msg("search request")

	count := 0
	var err error
	code, err = c.opts.Executor.Load().Execute(spanCtx, sreq, func(e search.Entry) error {
		_, writeErr := c.conn.Write(wire.EncodeSearchResultEntry(req.MessageID, wire.Entry{
			DN:         e.DN,
			Attributes: e.Attributes,
		}))
		count++
		return writeErr
	})

	if c.opts.Monitor != nil {
		c.opts.Monitor.SetLDAPMetric(map[string]string{"type": "entries_returned"}, float64(count))
	}

	if errors.Is(err, search.ErrAbandoned) {
		log.Debug().Msg("search abandoned; suppressing SearchResultDone")
		return
	}

	if err != nil {
		log.Warn().Err(err).Msg("search failed")
		if code == search.ResultSuccess {
			code = search.ResultOperationsError
		}
	}

	c.conn.Write(wire.EncodeSearchResultDone(req.MessageID, wire.ResultCode(code), ""))
}
