// Package server holds the capability registry of an MCP server and the
// facade that serves it.
//
// A Server keeps five independent registries: tools, resources, resource
// templates, prompts and completion handlers. Names are unique within each
// registry. Registrations made after Start announce themselves to clients
// with list_changed notifications.
//
//	srv := server.New(server.Info{Name: "notes", Version: "1.0.0"})
//
//	err := srv.RegisterResourceTemplate("note", "notes://{id}", server.TemplateConfig{
//	    MimeType: "text/markdown",
//	    ParameterSchema: &server.ParamSchema{
//	        Properties: map[string]server.ParamProperty{"id": {Type: server.ParamNumber}},
//	        Required:   []string{"id"},
//	    },
//	}, func(ctx context.Context, uri string, params map[string]string) (*server.ResourceContent, error) {
//	    return &server.ResourceContent{Text: notes[params["id"]]}, nil
//	})
//
// Tools can also be declared with a typed handler; the input schema is
// derived from the argument type:
//
//	type SearchInput struct {
//	    Query string `json:"query" jsonschema:"required"`
//	}
//
//	srv.Tool("search").
//	    Description("Search notes").
//	    Handler(func(ctx context.Context, in SearchInput) ([]string, error) {
//	        return search(in.Query), nil
//	    })
//
// # Completions
//
// Completion handlers are tried in registration order. The first handler
// that supports the reference type and argument, and whose reference
// exists, answers; a handler that fails is logged and skipped.
//
// # Lifecycle
//
// Transports are attached with UseTransport and run by Start. The Server
// itself is the transport.Handler they dispatch requests to.
package server
