package mcp_test

import (
	"context"
	"fmt"

	mcp "github.com/mcpforge/mcp-server"
	"github.com/mcpforge/mcp-server/server"
)

func Example() {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "example-server", Version: "1.0.0"},
		server.WithInstructions("Use search to find documents."))

	type SearchInput struct {
		Query string `json:"query" jsonschema:"required"`
		Limit int    `json:"limit" jsonschema:"maximum=100"`
	}
	srv.Tool("search").
		Description("Search for documents").
		ReadOnly().
		Handler(func(ctx context.Context, in SearchInput) ([]string, error) {
			return []string{"result1", "result2"}, nil
		})

	srv.Resource("users://{id}").
		Name("user").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			return &mcp.ResourceContent{URI: uri, Text: fmt.Sprintf(`{"id":%q}`, params["id"])}, nil
		})

	srv.Prompt("greet").
		Description("Generate a greeting").
		Argument("name", "Name to greet", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{Messages: []mcp.PromptMessage{mcp.UserMessage("Hello, " + args["name"])}}, nil
		})

	caps := srv.GetCapabilities()
	fmt.Println(len(caps.Tools), len(caps.Resources), len(caps.ResourceTemplates), len(caps.Prompts), len(caps.Completions))

	uri, _ := srv.GenerateResourceURI("user", map[string]string{"id": "42"})
	fmt.Println(uri)
	// Output:
	// 1 0 1 1 0
	// users://42
}

func ExampleServer_GetCompletions() {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "langs", Version: "1.0.0"})
	srv.Prompt("review").Argument("language", "Language", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{}, nil
		})
	_ = srv.RegisterDefaultPromptCompletion()

	res, _ := srv.GetCompletions(context.Background(),
		mcp.CompletionRef{Type: server.RefPrompt, Name: "review"},
		server.CompletionArgument{Name: "language", Value: "py"})
	fmt.Println(res.Values)
	// Output: [python]
}

func ExampleProgressFromContext() {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "server", Version: "1.0.0"})

	type ProcessInput struct {
		Items int `json:"items"`
	}
	srv.Tool("process").
		Handler(func(ctx context.Context, in ProcessInput) (string, error) {
			progress := mcp.ProgressFromContext(ctx)
			total := float64(in.Items)
			for i := range in.Items {
				_ = progress.Report(float64(i+1), &total)
			}
			return fmt.Sprintf("processed %d items", in.Items), nil
		})

	res, _ := srv.CallTool(context.Background(), "process", []byte(`{"items":3}`))
	fmt.Println(res.Content[0].Text)
	// Output: processed 3 items
}
