package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/config"
	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/testutil"
	"github.com/mcpforge/mcp-server/transport"
)

type addInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

func registerAdd(t *testing.T, srv *Server) {
	t.Helper()
	require.NoError(t, srv.Tool("add").
		Description("Adds two numbers").
		Handler(func(in addInput) (int, error) { return in.A + in.B, nil }).
		Err())
}

func TestServeStdio(t *testing.T) {
	srv := NewServer(ServerInfo{Name: "stdio-test", Version: "1.0.0"})
	registerAdd(t, srv)

	var in bytes.Buffer
	for _, line := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	} {
		in.WriteString(line + "\n")
	}
	var out syncBuffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr := transport.NewStdio(transport.WithStdin(&in), transport.WithStdout(&out))
	require.NoError(t, Serve(ctx, srv, tr))

	var responses []protocol.Response
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var resp protocol.Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 3)
	assert.Contains(t, out.String(), `"stdio-test"`)
	assert.Contains(t, out.String(), `"text":"5"`)
	assert.False(t, srv.Started(), "server stops once stdin is exhausted")
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := NewServer(ServerInfo{Name: "cancel", Version: "1"})
	rt := testutil.NewRecordingTransport()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, rt) }()

	require.Eventually(t, srv.Started, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.False(t, rt.Started())
}

func TestServeWithoutTransports(t *testing.T) {
	srv := NewServer(ServerInfo{Name: "none", Version: "1"})
	assert.ErrorContains(t, Serve(context.Background(), srv), "No transports configured")
}

func TestFromConfigStaticAuth(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Mode = config.AuthStatic
	cfg.Auth.Tokens = map[string]config.TokenConfig{"k1": {ID: "bob", Roles: []string{"admin"}}}
	cfg.RateLimit.Rate = 100
	cfg.Metrics.Enabled = true

	srv, err := FromConfig(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	require.Len(t, srv.Transports(), 1)
	assert.Equal(t, "stdio", srv.Transports()[0].Addr())

	require.NoError(t, srv.Tool("whoami").Handler(func(ctx context.Context, _ struct{}) (string, error) {
		return ToolContextFrom(ctx).User().ID, nil
	}).Err())

	tc := testutil.NewTestClient(t, srv)
	_, err = tc.CallToolText("whoami", nil)
	testutil.RequireErrorCode(t, err, protocol.CodeUnauthorized)

	who, err := tc.WithBearer("k1").CallToolText("whoami", nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", who)
}

func TestFromConfigJWT(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	cfg := config.Default()
	cfg.Auth.Mode = config.AuthJWT
	cfg.Auth.JWTSecret = secret
	cfg.Auth.Issuer = "https://issuer.test"

	srv, err := FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Tool("roles").Handler(func(ctx context.Context, _ struct{}) ([]string, error) {
		return ToolContextFrom(ctx).User().Roles, nil
	}).Err())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u1",
		"iss":   "https://issuer.test",
		"exp":   time.Now().Add(time.Minute).Unix(),
		"scope": "read write",
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	text, err := testutil.NewTestClient(t, srv).WithBearer(token).CallToolText("roles", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["read","write"]`, text)
}

func TestFromConfigHTTPWithMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Transports.Stdio = false
	cfg.Transports.HTTP.Addr = "127.0.0.1:0"
	cfg.Metrics.Enabled = true

	srv, err := FromConfig(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	registerAdd(t, srv)
	require.NoError(t, srv.Start(context.Background()))
	defer func() { _ = srv.Stop(context.Background()) }()

	h, ok := srv.Transports()[0].(*transport.HTTP)
	require.True(t, ok)
	base := "http://" + h.ListenAddr()

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":{"a":1,"b":1}}}`
	resp, err := http.Post(base+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	exposition, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(exposition), `mcp_tool_calls_total{status="ok",tool="add"} 1`)
	assert.Contains(t, string(exposition), `mcp_registry_entries{kind="tool"} 1`)
}

func TestFromConfigInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Mode = "magic"
	_, err := FromConfig(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "invalid config")

	cfg = config.Default()
	cfg.Transports.Redis.URL = "://bad"
	_, err = FromConfig(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "transports.redis.url")
}

func TestRun(t *testing.T) {
	cfg := config.Default()
	cfg.Transports.Stdio = false
	cfg.Transports.HTTP.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	var srv *Server
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, func(s *Server) error {
			srv = s
			cancel()
			return nil
		})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, srv.Started())
}
