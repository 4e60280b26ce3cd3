package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
)

func tag(order *[]string, name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			*order = append(*order, name)
			return next(ctx, req)
		}
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	h := Chain(tag(&order, "a"), tag(&order, "b"), tag(&order, "c"))(ok)
	_, err := h(context.Background(), request("ping"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestChainEmpty(t *testing.T) {
	resp, err := Chain()(ok)(context.Background(), request("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Result)
}

func TestStackAppendDoesNotAlias(t *testing.T) {
	var order []string
	base := Use(tag(&order, "a"))
	left := base.Append(tag(&order, "left"))
	right := base.Append(tag(&order, "right"))

	_, _ = left.Then(ok)(context.Background(), request("ping"))
	_, _ = right.Then(ok)(context.Background(), request("ping"))
	assert.Equal(t, []string{"a", "left", "a", "right"}, order)
}

func TestDefaultStack(t *testing.T) {
	assert.Len(t, DefaultStack(NopLogger{}, 0), 3)
	assert.Len(t, DefaultStack(NopLogger{}, time.Second), 4)

	log := &recordingLogger{}
	h := DefaultStack(log, time.Second).Then(func(context.Context, *protocol.Request) (*protocol.Response, error) {
		panic("boom")
	})
	_, err := h(context.Background(), request("tools/call"))
	require.Error(t, err)
	assert.Equal(t, protocol.CodeInternalError, protocol.AsError(err).Code)
	assert.Equal(t, "panic recovered", log.last().msg)
	assert.Equal(t, "tools/call", log.last().fields["method"])
}
