package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/auth"
	"github.com/mcpforge/mcp-server/middleware"
	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/server"
	"github.com/mcpforge/mcp-server/transport"
)

type greetInput struct {
	Name string `json:"name" jsonschema:"required"`
}

func demoServer(t *testing.T, opts ...server.Option) *server.Server {
	t.Helper()
	srv := server.New(server.Info{Name: "demo", Version: "1.0.0"}, opts...)

	require.NoError(t, srv.Tool("greet").
		Description("Greets someone").
		Handler(func(in greetInput) (string, error) { return "Hello, " + in.Name, nil }).
		Err())
	require.NoError(t, srv.Tool("whoami").
		Handler(func(ctx context.Context, _ struct{}) (string, error) {
			if u := server.ToolContextFrom(ctx).User(); u != nil {
				return u.ID, nil
			}
			return "anonymous", nil
		}).Err())
	require.NoError(t, srv.Tool("fail").
		Handler(func(struct{}) (*server.ToolResult, error) { return server.ErrorResult("nope"), nil }).
		Err())

	require.NoError(t, srv.Resource("notes://readme").Name("readme").
		Handler(func(_ context.Context, uri string, _ map[string]string) (*server.ResourceContent, error) {
			return &server.ResourceContent{URI: uri, Text: "read me"}, nil
		}).Err())
	require.NoError(t, srv.Resource("notes://{id}").Name("note").
		Handler(func(_ context.Context, uri string, p map[string]string) (*server.ResourceContent, error) {
			return &server.ResourceContent{URI: uri, Text: "note " + p["id"]}, nil
		}).Err())

	require.NoError(t, srv.Prompt("review").Argument("lang", "Language", true).
		Handler(func(_ context.Context, args map[string]string) (*server.PromptResult, error) {
			return &server.PromptResult{Messages: []server.PromptMessage{server.UserMessage("Review " + args["lang"])}}, nil
		}).Err())
	require.NoError(t, srv.RegisterDefaultPromptCompletion())
	return srv
}

func TestTestClientRoundTrips(t *testing.T) {
	tc := NewTestClient(t, demoServer(t))

	init, err := tc.Initialize()
	require.NoError(t, err)
	assert.Equal(t, "demo", init.ServerInfo.Name)
	assert.Equal(t, protocol.MCPVersion, init.ProtocolVersion)
	assert.NotNil(t, init.Capabilities.Tools)
	assert.NotNil(t, init.Capabilities.Completions)

	require.NoError(t, tc.Ping())

	greet := tc.RequireTool("greet")
	assert.Equal(t, "Greets someone", greet.Description)
	assert.Contains(t, greet.InputSchema.Required, "name")

	text, err := tc.CallToolText("greet", map[string]any{"name": "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", text)

	_, err = tc.CallToolText("fail", nil)
	assert.ErrorContains(t, err, "nope")

	_, err = tc.CallTool("missing", nil)
	RequireErrorCode(t, err, protocol.CodeInvalidParams)

	tc.RequireResource("notes://readme")
	tc.RequireResource("notes://{id}")
	body, err := tc.ReadResourceText("notes://42")
	require.NoError(t, err)
	assert.Equal(t, "note 42", body)

	_, err = tc.ReadResource("other://x")
	RequireErrorCode(t, err, protocol.CodeResourceNotFound)

	tc.RequirePrompt("review")
	prompt, err := tc.GetPrompt("review", map[string]string{"lang": "go"})
	require.NoError(t, err)
	require.Len(t, prompt.Messages, 1)
	assert.Equal(t, "Review go", prompt.Messages[0].Content.Text)

	res, err := tc.Complete(server.CompletionRef{Type: server.RefPrompt, Name: "review"}, "lang", "g")
	require.NoError(t, err)
	assert.Contains(t, res.Values, "go")

	require.NoError(t, tc.SetLogLevel(server.LogLevelDebug))
	require.NoError(t, tc.Subscribe("notes://readme"))
	require.NoError(t, tc.Unsubscribe("notes://readme"))
}

func TestTestClientMeta(t *testing.T) {
	provider := auth.NewStaticProvider(map[string]auth.User{"k1": {ID: "alice"}})
	srv := demoServer(t, server.WithMiddleware(middleware.Auth(provider)))
	tc := NewTestClient(t, srv)

	_, err := tc.CallToolText("whoami", nil)
	RequireErrorCode(t, err, protocol.CodeUnauthorized)

	who, err := tc.WithBearer("k1").CallToolText("whoami", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", who)

	// Handshake methods skip auth.
	_, err = tc.Initialize()
	assert.NoError(t, err)
}

func TestRecordingTransport(t *testing.T) {
	srv := demoServer(t)
	rt := NewRecordingTransport()
	require.NoError(t, srv.UseTransport(rt))
	require.NoError(t, srv.Start(context.Background()))
	assert.True(t, rt.Started())

	require.NoError(t, srv.RegisterTool("late", server.ToolConfig{}, func(context.Context, json.RawMessage) (*server.ToolResult, error) {
		return nil, nil
	}))
	srv.SendResourceUpdated("notes://readme")
	srv.Flush()

	assert.Len(t, rt.Notifications(protocol.MethodToolsListChanged), 1)
	updated := rt.Notifications(protocol.MethodResourcesUpdated)
	require.Len(t, updated, 1)
	var params server.ResourceUpdatedNotification
	require.NoError(t, updated[0].Decode(&params))
	assert.Equal(t, "notes://readme", params.URI)
	assert.Len(t, rt.Notifications(""), 2)

	resp := rt.Call(context.Background(), &protocol.Request{JSONRPC: "2.0", ID: []byte("1"), Method: protocol.MethodPing})
	assert.Nil(t, resp.Error)

	rt.Reset()
	assert.Empty(t, rt.Notifications(""))

	rt.SendErr = errors.New("closed")
	assert.Error(t, rt.SendNotification("x", nil))

	require.NoError(t, srv.Stop(context.Background()))
	assert.False(t, rt.Started())
}

func TestRecordingTransportNotStarted(t *testing.T) {
	rt := NewRecordingTransport()
	resp := rt.Call(context.Background(), &protocol.Request{ID: []byte("1"), Method: "ping"})
	require.NotNil(t, resp.Error)
	assert.ErrorIs(t, rt.Stop(context.Background()), transport.ErrNotRunning)
}
