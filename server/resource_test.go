package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
)

func TestRegisterResource(t *testing.T) {
	srv := newTestServer()
	require.NoError(t, srv.RegisterResource("readme", "file:///readme.md", ResourceConfig{
		Title:    "Readme",
		MimeType: "text/markdown",
	}, textResource("# hello")))

	info, err := srv.GetResource("readme")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "file:///readme.md", info.URI)
	assert.Equal(t, "text/markdown", info.MimeType)

	err = srv.RegisterResource("readme", "file:///other.md", ResourceConfig{}, textResource(""))
	assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err))

	assert.Error(t, srv.RegisterResource("", "file:///x", ResourceConfig{}, textResource("")))
	assert.Error(t, srv.RegisterResource("no-uri", "", ResourceConfig{}, textResource("")))

	missing, err := srv.GetResource("ghost")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	_, err = srv.GetResource("")
	assert.Error(t, err)

	assert.Len(t, srv.GetResources(), 1)
}

func TestRegisterResourceTemplate(t *testing.T) {
	t.Run("stores the descriptor", func(t *testing.T) {
		srv := newTestServer()
		ps := &ParamSchema{Properties: map[string]ParamProperty{"userId": {Type: ParamNumber}}}
		require.NoError(t, srv.RegisterResourceTemplate("user-docs", docsTemplate, TemplateConfig{
			Description:     "User documents",
			Annotations:     map[string]any{"audience": []string{"user"}},
			ParameterSchema: ps,
		}, textResource("")))

		info, err := srv.GetResourceTemplate("user-docs")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, docsTemplate, info.URITemplate)
		assert.Equal(t, "User documents", info.Description)
		assert.Equal(t, ps, info.ParameterSchema)
		assert.NotSame(t, ps, info.ParameterSchema)
		assert.Equal(t, map[string]any{"audience": []string{"user"}}, info.Annotations)
	})

	t.Run("rejects malformed templates", func(t *testing.T) {
		srv := newTestServer()
		for _, tmpl := range []string{"", "file:///{id", "file:///{1x}", "file:///{a}/{a}"} {
			err := srv.RegisterResourceTemplate("t", tmpl, TemplateConfig{}, textResource(""))
			assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err), tmpl)
		}
		assert.Empty(t, srv.ListResourceTemplates())
	})

	t.Run("rejects required parameters the template lacks", func(t *testing.T) {
		srv := newTestServer()
		err := srv.RegisterResourceTemplate("t", "x://{a}", TemplateConfig{
			ParameterSchema: &ParamSchema{Required: []string{"b"}},
		}, textResource(""))
		assert.Error(t, err)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		srv := newTestServer()
		require.NoError(t, srv.RegisterResourceTemplate("t", "x://{a}", TemplateConfig{}, textResource("")))
		err := srv.RegisterResourceTemplate("t", "y://{b}", TemplateConfig{}, textResource(""))
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("lists in registration order", func(t *testing.T) {
		srv := newTestServer()
		require.NoError(t, srv.RegisterResourceTemplate("zeta", "z://{a}", TemplateConfig{}, textResource("")))
		require.NoError(t, srv.RegisterResourceTemplate("alpha", "a://{a}", TemplateConfig{}, textResource("")))
		list := srv.ListResourceTemplates()
		require.Len(t, list, 2)
		assert.Equal(t, "zeta", list[0].Name)
		assert.Equal(t, "alpha", list[1].Name)
	})
}

func TestResourceTemplateInfoIsolated(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer()
	ps := &ParamSchema{Properties: map[string]ParamProperty{"userId": {Type: ParamNumber}}}
	ann := map[string]any{"audience": []string{"user"}}
	require.NoError(t, srv.RegisterResourceTemplate("user-docs", docsTemplate, TemplateConfig{
		Annotations:     ann,
		ParameterSchema: ps,
	}, textResource("doc")))

	ps.Properties["userId"] = ParamProperty{Type: ParamString}
	ann["audience"].([]string)[0] = "assistant"
	ann["priority"] = 1.0

	_, err := srv.ReadResource(ctx, "file:///users/abc/documents/x")
	assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err), "config mutation must not relax validation")

	info, err := srv.GetResourceTemplate("user-docs")
	require.NoError(t, err)
	info.ParameterSchema.Properties["userId"] = ParamProperty{Type: ParamString}
	info.Annotations["audience"].([]string)[0] = "assistant"
	listed := srv.ListResourceTemplates()
	delete(listed[0].ParameterSchema.Properties, "userId")
	listed[0].Annotations["priority"] = 1.0
	caps := srv.GetCapabilities()
	caps.ResourceTemplates[0].ParameterSchema.Properties["userId"] = ParamProperty{Type: ParamString}

	_, err = srv.ReadResource(ctx, "file:///users/abc/documents/x")
	assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err), "lookup mutation must not relax validation")
	res, err := srv.ReadResource(ctx, "file:///users/42/documents/x")
	require.NoError(t, err)
	assert.Equal(t, "doc", res.Contents[0].Text)

	again, err := srv.GetResourceTemplate("user-docs")
	require.NoError(t, err)
	assert.Equal(t, ParamNumber, again.ParameterSchema.Properties["userId"].Type)
	assert.Equal(t, map[string]any{"audience": []string{"user"}}, again.Annotations)
}

func TestResourceInfoIsolated(t *testing.T) {
	srv := newTestServer()
	ann := &ResourceAnnotations{Audience: []string{"user"}, Priority: Float(0.5)}
	require.NoError(t, srv.RegisterResource("readme", "file:///readme.md", ResourceConfig{Annotations: ann}, textResource("")))

	ann.Audience[0] = "assistant"
	*ann.Priority = 1

	info, err := srv.GetResource("readme")
	require.NoError(t, err)
	info.Annotations.Audience[0] = "assistant"
	*info.Annotations.Priority = 1
	srv.GetResources()[0].Annotations.Audience[0] = "assistant"

	again, err := srv.GetResource("readme")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, again.Annotations.Audience)
	assert.Equal(t, 0.5, *again.Annotations.Priority)
}

func TestGenerateResourceURI(t *testing.T) {
	srv := newTestServer()
	require.NoError(t, srv.RegisterResourceTemplate("user-docs", docsTemplate, TemplateConfig{}, textResource("")))

	uri, err := srv.GenerateResourceURI("user-docs", map[string]string{"userId": "123", "docId": "my doc.txt"})
	require.NoError(t, err)
	assert.Equal(t, "file:///users/123/documents/my%20doc.txt", uri)

	_, err = srv.GenerateResourceURI("user-docs", map[string]string{"userId": "123"})
	assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err))
	assert.Contains(t, err.Error(), "docId")

	_, err = srv.GenerateResourceURI("ghost", nil)
	assert.Equal(t, protocol.CodeResourceNotFound, protocolCode(err))
}

func TestReadResource(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer()

	require.NoError(t, srv.RegisterResource("static", "file:///users/me/documents/pinned", ResourceConfig{MimeType: "text/plain"}, textResource("pinned")))
	var got map[string]string
	require.NoError(t, srv.RegisterResourceTemplate("user-docs", docsTemplate, TemplateConfig{
		MimeType: "text/plain",
		ParameterSchema: &ParamSchema{
			Properties: map[string]ParamProperty{"userId": {Type: ParamNumber}},
			Required:   []string{"userId", "docId"},
		},
	}, func(_ context.Context, uri string, params map[string]string) (*ResourceContent, error) {
		got = params
		return &ResourceContent{Text: "doc " + params["docId"]}, nil
	}))
	require.NoError(t, srv.RegisterResourceTemplate("broken", "broken://{id}", TemplateConfig{},
		func(context.Context, string, map[string]string) (*ResourceContent, error) {
			return nil, errors.New("backend down")
		}))

	t.Run("literal resources win over templates", func(t *testing.T) {
		res, err := srv.ReadResource(ctx, "file:///users/me/documents/pinned")
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Equal(t, "pinned", res.Contents[0].Text)
		assert.Equal(t, "file:///users/me/documents/pinned", res.Contents[0].URI)
	})

	t.Run("template parameters are decoded and validated", func(t *testing.T) {
		res, err := srv.ReadResource(ctx, "file:///users/42/documents/my%20doc.txt")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"userId": "42", "docId": "my doc.txt"}, got)
		assert.Equal(t, "doc my doc.txt", res.Contents[0].Text)
		assert.Equal(t, "text/plain", res.Contents[0].MimeType)

		_, err = srv.ReadResource(ctx, "file:///users/abc/documents/x")
		assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err))
	})

	t.Run("handler errors are wrapped", func(t *testing.T) {
		_, err := srv.ReadResource(ctx, "broken://1")
		assert.True(t, protocol.IsWrapped(err))
	})

	t.Run("unknown uri", func(t *testing.T) {
		_, err := srv.ReadResource(ctx, "nope://x")
		assert.Equal(t, protocol.CodeResourceNotFound, protocolCode(err))
	})

	t.Run("FindResourceForURI", func(t *testing.T) {
		m := srv.FindResourceForURI("file:///users/7/documents/a")
		require.NotNil(t, m)
		assert.Equal(t, "user-docs", m.Name)
		assert.True(t, m.Template)
		assert.Nil(t, srv.FindResourceForURI("nope://x"))
	})
}

func TestResourceBuilder(t *testing.T) {
	srv := newTestServer()

	require.NoError(t, srv.Resource("config://app").
		Name("app-config").
		MimeType("application/json").
		Audience("assistant").
		Handler(textResource("{}")).Err())
	require.NoError(t, srv.Resource("users://{id}/profile").
		Name("profile").
		Priority(0.8).
		Params(&ParamSchema{Properties: map[string]ParamProperty{"id": {Type: ParamNumber}}}).
		Handler(textResource("")).Err())

	r, _ := srv.GetResource("app-config")
	require.NotNil(t, r)
	assert.Equal(t, []string{"assistant"}, r.Annotations.Audience)

	tmpl, _ := srv.GetResourceTemplate("profile")
	require.NotNil(t, tmpl)
	assert.Equal(t, 0.8, tmpl.Annotations["priority"])

	_, err := srv.ReadResource(context.Background(), "users/x")
	assert.Error(t, err)
	_, err = srv.ReadResource(context.Background(), "users://x/profile")
	assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err))

	assert.Error(t, srv.Resource("bad://{x").Handler(textResource("")).Err())
}
