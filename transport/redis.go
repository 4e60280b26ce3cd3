package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mcpforge/mcp-server/protocol"
)

// RelayEnvelope wraps a JSON-RPC message travelling through Redis.
type RelayEnvelope struct {
	ID      string               `json:"id"`
	ReplyTo string               `json:"replyTo,omitempty"`
	Meta    protocol.RequestMeta `json:"meta,omitempty"`
	Message json.RawMessage      `json:"message"`
}

// RedisRelayConfig configures a RedisRelay.
type RedisRelayConfig struct {
	// Client is the Redis client. Defaults to localhost:6379.
	Client redis.UniversalClient
	// KeyPrefix is prepended to every key and channel. Defaults to "mcp:relay:".
	KeyPrefix string
	// PollTimeout bounds each blocking pop so Stop is observed promptly.
	PollTimeout time.Duration
	Logger      *slog.Logger
}

// RedisRelay serves MCP through Redis so that workers behind a queue can
// host a server. Clients push envelopes onto the "<prefix>requests" list;
// responses are published on the envelope's ReplyTo channel and
// notifications on "<prefix>notifications".
type RedisRelay struct {
	client      redis.UniversalClient
	prefix      string
	pollTimeout time.Duration
	logger      *slog.Logger
	run         runner
}

// NewRedisRelay creates a Redis relay transport.
func NewRedisRelay(cfg RedisRelayConfig) *RedisRelay {
	if cfg.Client == nil {
		cfg.Client = redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "mcp:relay:"
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &RedisRelay{
		client:      cfg.Client,
		prefix:      cfg.KeyPrefix,
		pollTimeout: cfg.PollTimeout,
		logger:      cfg.Logger,
	}
}

// Addr returns the request list key.
func (r *RedisRelay) Addr() string {
	return "redis://" + r.RequestKey()
}

// RequestKey is the list clients push request envelopes onto.
func (r *RedisRelay) RequestKey() string { return r.prefix + "requests" }

// NotificationChannel is the pub/sub channel carrying notifications.
func (r *RedisRelay) NotificationChannel() string { return r.prefix + "notifications" }

func (r *RedisRelay) replyChannel(env *RelayEnvelope) string {
	if env.ReplyTo != "" {
		return env.ReplyTo
	}
	return r.prefix + "responses:" + env.ID
}

// Start verifies connectivity and begins consuming requests.
func (r *RedisRelay) Start(ctx context.Context, handler Handler) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("transport: redis ping: %w", err)
	}
	return r.run.start(ctx, func(ctx context.Context) error {
		return r.consume(ctx, handler)
	})
}

// Stop stops consuming requests. The Redis client is left open.
func (r *RedisRelay) Stop(ctx context.Context) error {
	return r.run.stop(ctx)
}

// SendNotification publishes a notification on the notification channel.
func (r *RedisRelay) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Publish(ctx, r.NotificationChannel(), data).Err()
}

func (r *RedisRelay) consume(ctx context.Context, handler Handler) error {
	backoff := 100 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := r.client.BLPop(ctx, r.pollTimeout, r.RequestKey()).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.logger.Warn("redis relay pop failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 5*time.Second)
			continue
		}
		backoff = 100 * time.Millisecond

		// BLPOP returns [key, value].
		if len(res) != 2 {
			continue
		}
		r.handle(ctx, handler, []byte(res[1]))
	}
}

func (r *RedisRelay) handle(ctx context.Context, handler Handler, raw []byte) {
	var env RelayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.ID == "" {
		r.logger.Warn("redis relay dropped malformed envelope", slog.Any("error", err))
		return
	}

	meta := protocol.RequestMeta{protocol.MetaTransport: "redis"}
	for k, v := range env.Meta {
		meta[k] = v
	}
	reqCtx := ContextWithNotificationSender(ctx, r)
	reqCtx = protocol.ContextWithRequestMeta(reqCtx, meta)

	resp := dispatchRaw(reqCtx, handler, env.Message)
	if resp == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		r.logger.Warn("redis relay encode response", slog.Any("error", err))
		return
	}
	reply := RelayEnvelope{ID: env.ID, Message: data}
	out, _ := json.Marshal(reply)
	if err := r.client.Publish(ctx, r.replyChannel(&env), out).Err(); err != nil {
		r.logger.Warn("redis relay publish response", slog.String("id", env.ID), slog.Any("error", err))
	}
}

// RelayClient sends requests to a RedisRelay and waits for the reply.
type RelayClient struct {
	client redis.UniversalClient
	relay  *RedisRelay
}

// NewRelayClient creates a client for the relay's key space.
func NewRelayClient(client redis.UniversalClient, relay *RedisRelay) *RelayClient {
	return &RelayClient{client: client, relay: relay}
}

// Call pushes req and blocks until the matching response arrives or ctx ends.
func (c *RelayClient) Call(ctx context.Context, req *protocol.Request, meta protocol.RequestMeta) (*protocol.Response, error) {
	msg, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	env := RelayEnvelope{ID: uuid.NewString(), Meta: meta, Message: msg}
	channel := c.relay.replyChannel(&env)

	sub := c.client.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("transport: subscribe %s: %w", channel, err)
	}

	payload, _ := json.Marshal(env)
	if err := c.client.RPush(ctx, c.relay.RequestKey(), payload).Err(); err != nil {
		return nil, fmt.Errorf("transport: push request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, errors.New("transport: reply subscription closed")
		}
		var reply RelayEnvelope
		if err := json.Unmarshal([]byte(m.Payload), &reply); err != nil {
			return nil, fmt.Errorf("transport: decode reply: %w", err)
		}
		var resp protocol.Response
		if err := json.Unmarshal(reply.Message, &resp); err != nil {
			return nil, fmt.Errorf("transport: decode response: %w", err)
		}
		return &resp, nil
	}
}
