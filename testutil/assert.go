package testutil

import (
	"slices"

	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/server"
)

// RequireTool fails the test unless tools/list contains name.
func (c *TestClient) RequireTool(name string) server.ToolInfo {
	c.t.Helper()
	tools, err := c.ListTools()
	require.NoError(c.t, err)
	i := slices.IndexFunc(tools, func(ti server.ToolInfo) bool { return ti.Name == name })
	require.GreaterOrEqual(c.t, i, 0, "tool %q not listed", name)
	return tools[i]
}

// RequirePrompt fails the test unless prompts/list contains name.
func (c *TestClient) RequirePrompt(name string) server.PromptInfo {
	c.t.Helper()
	prompts, err := c.ListPrompts()
	require.NoError(c.t, err)
	i := slices.IndexFunc(prompts, func(p server.PromptInfo) bool { return p.Name == name })
	require.GreaterOrEqual(c.t, i, 0, "prompt %q not listed", name)
	return prompts[i]
}

// RequireResource fails the test unless a resource or template has uri as
// its URI or URI template.
func (c *TestClient) RequireResource(uri string) {
	c.t.Helper()
	resources, err := c.ListResources()
	require.NoError(c.t, err)
	if slices.ContainsFunc(resources, func(r server.ResourceInfo) bool { return r.URI == uri }) {
		return
	}
	templates, err := c.ListResourceTemplates()
	require.NoError(c.t, err)
	require.True(c.t, slices.ContainsFunc(templates, func(rt server.ResourceTemplateInfo) bool {
		return rt.URITemplate == uri
	}), "resource %q not listed", uri)
}

// RequireErrorCode fails the test unless err is a protocol error with code.
func RequireErrorCode(t require.TestingT, err error, code int) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	require.Error(t, err)
	var perr *protocol.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, code, perr.Code, "unexpected error %v", perr)
}
