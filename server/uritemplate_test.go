package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
)

const docsTemplate = "file:///users/{userId}/documents/{docId}"

func TestIsValidURITemplate(t *testing.T) {
	tests := []struct {
		template string
		valid    bool
	}{
		{"file:///users/{userId}", true},
		{docsTemplate, true},
		{"file:///static/readme.md", true},
		{"db://{_table}/{row2}", true},
		{"", false},
		{"file:///test/{id", false},
		{"file:///test/id}", false},
		{"file:///{{id}}", false},
		{"file:///{}", false},
		{"file:///{1id}", false},
		{"file:///{user-id}", false},
		{"file:///{id}/{id}", false},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidURITemplate(tt.template))
		})
	}
}

func TestTemplateParams(t *testing.T) {
	assert.Equal(t, []string{"userId", "docId"}, TemplateParams(docsTemplate))
	assert.Empty(t, TemplateParams("file:///static"))
	assert.Nil(t, TemplateParams("file:///{bad"))
}

func TestExtractTemplateParams(t *testing.T) {
	t.Run("captures one segment per placeholder", func(t *testing.T) {
		params, err := ExtractTemplateParams(docsTemplate, "file:///users/123/documents/report.txt")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"userId": "123", "docId": "report.txt"}, params)
	})

	t.Run("decodes percent escapes", func(t *testing.T) {
		params, err := ExtractTemplateParams(docsTemplate, "file:///users/123/documents/my%20doc.txt")
		require.NoError(t, err)
		assert.Equal(t, "my doc.txt", params["docId"])
	})

	t.Run("quotes regex metacharacters in literals", func(t *testing.T) {
		params, err := ExtractTemplateParams("db://a.b/{id}?x", "db://a.b/7?x")
		require.NoError(t, err)
		assert.Equal(t, "7", params["id"])

		_, err = ExtractTemplateParams("db://a.b/{id}?x", "db://aXb/7?x")
		require.Error(t, err)
	})

	t.Run("rejects a mismatched path", func(t *testing.T) {
		_, err := ExtractTemplateParams(docsTemplate, "file:///different/path")
		require.Error(t, err)
		assert.ErrorIs(t, err, protocol.NewInvalidParams(""))
		assert.Contains(t, err.Error(), "does not match template")
	})

	t.Run("placeholders do not span slashes", func(t *testing.T) {
		_, err := ExtractTemplateParams("file:///{path}", "file:///a/b")
		require.Error(t, err)
	})

	t.Run("rejects an invalid template", func(t *testing.T) {
		_, err := ExtractTemplateParams("file:///{id", "file:///{id")
		assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err))
	})
}

func TestPopulateURITemplate(t *testing.T) {
	t.Run("percent-encodes values", func(t *testing.T) {
		uri, err := PopulateURITemplate(docsTemplate, map[string]string{"userId": "123", "docId": "my doc.txt"})
		require.NoError(t, err)
		assert.Equal(t, "file:///users/123/documents/my%20doc.txt", uri)
	})

	t.Run("names the first missing parameter", func(t *testing.T) {
		_, err := PopulateURITemplate(docsTemplate, map[string]string{"userId": "123"})
		require.Error(t, err)
		assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err))
		assert.Contains(t, err.Error(), "docId")
	})

	t.Run("literal template is returned unchanged", func(t *testing.T) {
		uri, err := PopulateURITemplate("file:///static", nil)
		require.NoError(t, err)
		assert.Equal(t, "file:///static", uri)
	})
}

func TestURITemplateRoundTrip(t *testing.T) {
	values := []map[string]string{
		{"userId": "123", "docId": "report.txt"},
		{"userId": "jane doe", "docId": "a?b#c"},
		{"userId": "ü", "docId": "100%"},
	}
	for _, want := range values {
		uri, err := PopulateURITemplate(docsTemplate, want)
		require.NoError(t, err)
		got, err := ExtractTemplateParams(docsTemplate, uri)
		require.NoError(t, err)
		assert.Equal(t, want, got, "uri %s", uri)
	}
}
