package protocol

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sql2ldap/sql2ldap/internal/wire"
)

// handleBind implements the single bind transition this server
// supports: anonymous simple bind (empty DN, empty password) always
// succeeds; every other bind form is rejected without affecting the
// connection's state, so a later anonymous bind (or none at all,
// since search does not require a prior bind here) still works.
func (c *connection) handleBind(log zerolog.Logger, req *wire.Request) {
	start := time.Now()
	result := wire.ResultAuthMethodNotSupported
	defer func() {
		if c.opts.Monitor != nil {
			c.opts.Monitor.SetResponseTimeMetric(
				map[string]string{"operation": "bind", "status": fmt.Sprintf("%v", result)},
				time.Since(start).Seconds(),
			)
		}
	}()

	if req.BindSimple && req.BindDN == "" && req.BindPassword == "" {
		c.state = stateBound
		result = wire.ResultSuccess
		log.Debug().Msg("anonymous bind accepted")
		c.writeBindLikeResult(req.MessageID, result)
		return
	}

	log.Debug().Str("bind_dn", req.BindDN).Msg("rejecting non-anonymous bind")
	c.writeBindLikeResult(req.MessageID, result)
}
