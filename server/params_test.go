package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
)

func TestParamSchemaValidate(t *testing.T) {
	ps := &ParamSchema{
		Properties: map[string]ParamProperty{
			"userId": {Type: ParamNumber},
			"docId":  {Type: ParamString},
			"draft":  {Type: ParamBoolean},
		},
		Required: []string{"userId", "docId"},
	}

	tests := []struct {
		name    string
		params  map[string]string
		wantErr string
	}{
		{"valid", map[string]string{"userId": "42", "docId": "x"}, ""},
		{"decimal number", map[string]string{"userId": "4.5", "docId": "x"}, ""},
		{"missing required", map[string]string{"userId": "42"}, `"docId"`},
		{"not a number", map[string]string{"userId": "abc", "docId": "x"}, `"userId"`},
		{"booleans are unchecked", map[string]string{"userId": "1", "docId": "x", "draft": "maybe"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Validate(tt.params)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, protocol.CodeInvalidParams, protocolCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("nil schema accepts anything", func(t *testing.T) {
		var nilSchema *ParamSchema
		assert.NoError(t, nilSchema.Validate(map[string]string{"a": "b"}))
	})
}

func TestParamSchemaMarshalJSON(t *testing.T) {
	data, err := json.Marshal(ParamSchema{
		Properties: map[string]ParamProperty{"id": {Type: ParamNumber}},
		Required:   []string{"id"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"id":{"type":"number"}},"required":["id"]}`, string(data))
}

func TestBindParams(t *testing.T) {
	type card struct {
		Board string  `uri:"boardId"`
		Card  int     `uri:"cardId"`
		Score float64 `json:"score"`
		Open  bool    `json:"open,omitempty"`
	}

	got, err := BindParams[card](map[string]string{"boardId": "b1", "cardId": "7", "score": "0.5", "open": "true"})
	require.NoError(t, err)
	assert.Equal(t, card{Board: "b1", Card: 7, Score: 0.5, Open: true}, got)

	_, err = BindParams[card](map[string]string{"cardId": "seven"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cardId")

	_, err = BindParams[string](nil)
	assert.Error(t, err)
}
