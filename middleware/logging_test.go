package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
)

func TestLogging(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		log := &recordingLogger{}
		ctx := ContextWithRequestID(withMeta(protocol.MetaTransport, "stdio"), "rid-1")
		_, err := Logging(log)(ok)(ctx, request("tools/list"))
		require.NoError(t, err)

		e := log.last()
		assert.Equal(t, "info", e.level)
		assert.Equal(t, "request completed", e.msg)
		assert.Equal(t, "tools/list", e.fields["method"])
		assert.Equal(t, "rid-1", e.fields["request_id"])
		assert.Equal(t, "stdio", e.fields["transport"])
		assert.Contains(t, e.fields, "duration")
	})

	t.Run("protocol error carries code", func(t *testing.T) {
		log := &recordingLogger{}
		h := Logging(log)(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			return nil, protocol.NewMethodNotFound("nope")
		})
		_, err := h(context.Background(), request("bogus"))
		require.Error(t, err)

		e := log.last()
		assert.Equal(t, "error", e.level)
		assert.Equal(t, protocol.CodeMethodNotFound, e.fields["code"])
	})

	t.Run("plain error", func(t *testing.T) {
		log := &recordingLogger{}
		h := Logging(log)(func(context.Context, *protocol.Request) (*protocol.Response, error) {
			return nil, errors.New("disk full")
		})
		_, _ = h(context.Background(), request("tools/call"))
		assert.Equal(t, "disk full", log.last().fields["error"])
		assert.NotContains(t, log.last().fields, "code")
	})

	t.Run("notification at debug", func(t *testing.T) {
		log := &recordingLogger{}
		req := &protocol.Request{Method: protocol.MethodInitialized}
		_, _ = Logging(log)(ok)(context.Background(), req)
		assert.Equal(t, "debug", log.last().level)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := Logging(nil)(ok)(context.Background(), request("ping"))
		assert.NoError(t, err)
	})
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Info("hello", F("method", "ping"), F("n", 3))
	l.Warn("careful")
	l.Debug("detail")
	l.Error("bad", F("error", "x"))

	out := buf.String()
	assert.Contains(t, out, "msg=hello method=ping n=3")
	assert.Contains(t, out, "level=WARN msg=careful")
	assert.Contains(t, out, "level=DEBUG msg=detail")
	assert.Contains(t, out, "level=ERROR msg=bad error=x")

	assert.NotNil(t, NewSlogLogger(nil))
}
