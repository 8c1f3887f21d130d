package dgramserver

import (
	"fmt"
	"time"

	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

// builtinNames are reserved: a caller cannot register a handler under one
// of these, since the server answers them itself.
var builtinNames = map[string]bool{
	"ping":     true,
	"echo":     true,
	"get_info": true,
	"manifest": true,
}

// handleBuiltin answers one of the reserved request names directly,
// reporting ok=false if req.Request is not a builtin.
func (s *Server) handleBuiltin(req *protocol.Request) (interface{}, *rpcerr.Error, bool) {
	switch req.Request {
	case "ping":
		return map[string]interface{}{
			"pong":      true,
			"timestamp": float64(time.Now().UnixNano()) / 1e9,
		}, nil, true

	case "echo":
		return map[string]interface{}{"args": req.Args}, nil, true

	case "get_info":
		return map[string]interface{}{
			"uptime_seconds":  time.Since(s.startedAt).Seconds(),
			"handler_count":   s.handlers.Count(),
			"tracked_clients": s.activity.Len(),
			"max_connections": s.config.MaxConnections,
		}, nil, true

	case "manifest":
		if s.manifest == nil {
			return nil, rpcerr.New(rpcerr.ServerError, "no manifest is configured on this server"), true
		}
		return s.manifest, nil, true
	}
	return nil, nil, false
}

func reservedNameErr(name string) error {
	return fmt.Errorf("'%s' is a reserved built-in request name", name)
}
