// Package transport provides the wire bindings an MCP server is started on.
//
// Every transport implements Transport: Start begins serving in the
// background and returns once the transport is ready, Stop shuts it down.
// Transports that can push messages to clients also implement
// NotificationSender; the server facade broadcasts list-changed
// notifications through them.
//
// # Stdio
//
// Newline-delimited JSON-RPC on stdin/stdout, for local tools:
//
//	t := transport.NewStdio()
//
// # HTTP
//
// A chi router serving POST /mcp, GET /mcp/sse, GET /health and, when the
// handler is a Describer, GET /capabilities:
//
//	t := transport.NewHTTP(":8080", transport.WithDefaultCORS())
//
// # WebSocket
//
// One JSON-RPC message per text frame, via gorilla/websocket:
//
//	t := transport.NewWebSocket(":8081")
//
// # Redis relay
//
// Requests are popped from a Redis list and replies published on pub/sub
// channels, letting queue workers host a server:
//
//	t := transport.NewRedisRelay(transport.RedisRelayConfig{Client: rdb})
package transport
