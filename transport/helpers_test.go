package transport_test

import (
	"context"
	"encoding/json"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

// echoHandler answers "echo" with its params, "meta" with the request
// metadata and "notify" by pushing a notification through the context.
func echoHandler() transport.HandlerFunc {
	return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		switch req.Method {
		case "echo":
			var params map[string]any
			_ = json.Unmarshal(req.Params, &params)
			return protocol.NewResponse(req.ID, params), nil
		case "meta":
			return protocol.NewResponse(req.ID, protocol.RequestMetaFromContext(ctx)), nil
		case "notify":
			if sender := transport.NotificationSenderFromContext(ctx); sender != nil {
				_ = sender.SendNotification(protocol.MethodProgress, map[string]any{"progress": 1})
			}
			return protocol.NewResponse(req.ID, map[string]any{}), nil
		case "fail":
			return nil, protocol.NewResourceNotFound("missing")
		default:
			return nil, protocol.NewMethodNotFound(req.Method)
		}
	}
}

type describer struct {
	transport.HandlerFunc
}

func (describer) Describe() any { return map[string]int{"tools": 2} }
