package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcpforge/mcp-server/protocol"
)

// WebSocket implements MCP transport over WebSocket connections. Each text
// frame carries one JSON-RPC message.
type WebSocket struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *slog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu         sync.RWMutex
	server     *http.Server
	listenAddr string
	baseCtx    context.Context
	cancel     context.CancelFunc
	clients    map[*wsClient]struct{}
	wg         sync.WaitGroup
}

type wsClient struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketReadTimeout sets the idle read timeout per connection.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) { ws.readTimeout = d }
}

// WithWebSocketWriteTimeout sets the write deadline per message.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) { ws.writeTimeout = d }
}

// WithWebSocketCheckOrigin sets the origin check used during upgrades.
func WithWebSocketCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(ws *WebSocket) { ws.upgrader.CheckOrigin = fn }
}

// WithWebSocketLogger sets the transport logger.
func WithWebSocketLogger(l *slog.Logger) WebSocketOption {
	return func(ws *WebSocket) { ws.logger = l }
}

// NewWebSocket creates a new WebSocket transport.
func NewWebSocket(addr string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:       discardLogger(),
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		clients:      make(map[*wsClient]struct{}),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Addr returns the transport address.
func (ws *WebSocket) Addr() string {
	return ws.addr
}

// ListenAddr returns the bound address once started.
func (ws *WebSocket) ListenAddr() string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.listenAddr
}

// Start binds the listener and accepts upgrades in the background.
func (ws *WebSocket) Start(ctx context.Context, handler Handler) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.server != nil {
		return errors.New("transport: websocket already started")
	}

	listener, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", ws.addr, err)
	}

	ws.baseCtx, ws.cancel = context.WithCancel(context.WithoutCancel(ctx))
	ws.listenAddr = listener.Addr().String()
	ws.server = &http.Server{
		Handler:           ws.HTTPHandler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := ws.server
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ws.logger.Error("websocket transport stopped", slog.Any("error", err))
		}
	}()
	ws.logger.Info("websocket transport listening", slog.String("addr", ws.listenAddr))
	return nil
}

// Stop closes every connection and shuts the listener down.
func (ws *WebSocket) Stop(ctx context.Context) error {
	ws.mu.Lock()
	srv, cancel := ws.server, ws.cancel
	ws.server, ws.cancel = nil, nil
	ws.mu.Unlock()
	if srv == nil {
		return ErrNotRunning
	}

	cancel()
	ws.closeAllClients()
	err := srv.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// HTTPHandler returns the upgrade handler, usable with httptest.
func (ws *WebSocket) HTTPHandler(handler Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.handleConnection(w, r, handler)
	})
}

// SendNotification broadcasts a notification to every connected client.
func (ws *WebSocket) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	ws.mu.RLock()
	clients := make([]*wsClient, 0, len(ws.clients))
	for c := range ws.clients {
		clients = append(clients, c)
	}
	ws.mu.RUnlock()

	var errs []error
	for _, c := range clients {
		if err := c.write(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clients returns the number of open connections.
func (ws *WebSocket) Clients() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.clients)
}

func (ws *WebSocket) handleConnection(w http.ResponseWriter, r *http.Request, handler Handler) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &wsClient{conn: conn, writeTimeout: ws.writeTimeout}

	ws.mu.Lock()
	base := ws.baseCtx
	ws.clients[client] = struct{}{}
	ws.wg.Add(1)
	ws.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, client)
		ws.mu.Unlock()
		_ = conn.Close()
		ws.wg.Done()
	}()

	ctx := ContextWithNotificationSender(base, client)
	ctx = protocol.ContextWithRequestMeta(ctx, wsRequestMeta(r))

	for {
		if ctx.Err() != nil {
			return
		}
		if ws.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Debug("websocket read failed", slog.Any("error", err))
			}
			return
		}
		if resp := dispatchRaw(ctx, handler, message); resp != nil {
			if err := client.writeJSON(resp); err != nil {
				ws.logger.Warn("websocket write failed", slog.Any("error", err))
				return
			}
		}
	}
}

func wsRequestMeta(r *http.Request) protocol.RequestMeta {
	meta := protocol.RequestMeta{
		protocol.MetaTransport:  "websocket",
		protocol.MetaRemoteAddr: r.RemoteAddr,
	}
	if v := r.Header.Get(protocol.MetaAuthorization); v != "" {
		meta[protocol.MetaAuthorization] = v
	}
	return meta
}

func (ws *WebSocket) closeAllClients() {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for client := range ws.clients {
		client.close()
	}
}

func (c *wsClient) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline()
	return c.conn.WriteJSON(v)
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) deadline() {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
