package transport_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRelay(t *testing.T) {
	client := redisClient(t)
	relay := transport.NewRedisRelay(transport.RedisRelayConfig{
		Client:      client,
		KeyPrefix:   "test:relay:" + uuid.NewString() + ":",
		PollTimeout: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, relay.Start(ctx, echoHandler()))
	defer func() { _ = relay.Stop(context.Background()) }()

	rc := transport.NewRelayClient(client, relay)

	t.Run("request and reply", func(t *testing.T) {
		resp, err := rc.Call(ctx, &protocol.Request{
			JSONRPC: protocol.JSONRPCVersion,
			ID:      json.RawMessage(`1`),
			Method:  "meta",
		}, protocol.RequestMeta{protocol.MetaAuthorization: "Bearer t"})
		require.NoError(t, err)
		meta := resp.Result.(map[string]any)
		assert.Equal(t, "redis", meta[protocol.MetaTransport])
		assert.Equal(t, "Bearer t", meta[protocol.MetaAuthorization])
	})

	t.Run("handler errors", func(t *testing.T) {
		resp, err := rc.Call(ctx, &protocol.Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "fail"}, nil)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.CodeResourceNotFound, resp.Error.Code)
	})

	t.Run("notifications are published", func(t *testing.T) {
		sub := client.Subscribe(ctx, relay.NotificationChannel())
		defer sub.Close()
		_, err := sub.Receive(ctx)
		require.NoError(t, err)

		require.NoError(t, relay.SendNotification(protocol.MethodPromptsListChanged, nil))
		msg := <-sub.Channel()
		var n protocol.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, protocol.MethodPromptsListChanged, n.Method)
	})
}

func TestRedisRelay_StartFailsWithoutServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	relay := transport.NewRedisRelay(transport.RedisRelayConfig{Client: client})
	assert.Error(t, relay.Start(context.Background(), echoHandler()))
	assert.Equal(t, "redis://mcp:relay:requests", relay.Addr())
}
