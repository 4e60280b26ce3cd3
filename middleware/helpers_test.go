package middleware

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mcpforge/mcp-server/protocol"
)

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) add(level, msg string, fields []Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	r.entries = append(r.entries, logEntry{level: level, msg: msg, fields: m})
}

func (r *recordingLogger) Info(msg string, fields ...Field)  { r.add("info", msg, fields) }
func (r *recordingLogger) Error(msg string, fields ...Field) { r.add("error", msg, fields) }
func (r *recordingLogger) Debug(msg string, fields ...Field) { r.add("debug", msg, fields) }
func (r *recordingLogger) Warn(msg string, fields ...Field)  { r.add("warn", msg, fields) }

func (r *recordingLogger) last() logEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

func ok(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResponse(req.ID, "ok"), nil
}

func request(method string) *protocol.Request {
	return &protocol.Request{JSONRPC: protocol.JSONRPCVersion, ID: json.RawMessage("1"), Method: method}
}

func withMeta(kv ...string) context.Context {
	meta := protocol.RequestMeta{}
	for i := 0; i+1 < len(kv); i += 2 {
		meta[kv[i]] = kv[i+1]
	}
	return protocol.ContextWithRequestMeta(context.Background(), meta)
}
