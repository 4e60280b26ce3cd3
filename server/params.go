package server

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/mcpforge/mcp-server/protocol"
)

// ParamType names the primitive type of a template parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// ParamProperty describes a single template parameter.
type ParamProperty struct {
	Type        ParamType `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ParamSchema is the small schema applied to parameters extracted from a
// resource template URI before its handler runs. Only required keys and
// "number" properties are checked; other types pass through.
type ParamSchema struct {
	Properties map[string]ParamProperty `json:"properties,omitempty"`
	Required   []string                 `json:"required,omitempty"`
}

// Validate checks params against the schema.
func (s *ParamSchema) Validate(params map[string]string) error {
	if s == nil {
		return nil
	}
	for _, key := range s.Required {
		if _, ok := params[key]; !ok {
			return protocol.InvalidParamsf("missing required parameter %q", key)
		}
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if s.Properties[name].Type != ParamNumber {
			continue
		}
		v, ok := params[name]
		if !ok {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return protocol.InvalidParamsf("parameter %q must be a number, got %q", name, v)
		}
	}
	return nil
}

// check verifies that the schema only requires parameters the template
// declares.
func (s *ParamSchema) check(names []string) error {
	if s == nil {
		return nil
	}
	for _, key := range s.Required {
		if !slices.Contains(names, key) {
			return protocol.InvalidParamsf("required parameter %q is not a template placeholder", key)
		}
	}
	return nil
}

// MarshalJSON renders the schema as a JSON Schema object.
func (s ParamSchema) MarshalJSON() ([]byte, error) {
	type alias ParamSchema
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "object", alias: alias(s)})
}

// BindParams decodes template parameters into a struct. Fields are matched
// by `uri` tag, falling back to the `json` tag name.
//
//	type cardParams struct {
//	    Board string `uri:"boardId"`
//	    Card  int    `uri:"cardId"`
//	}
//	p, err := server.BindParams[cardParams](params)
func BindParams[T any](params map[string]string) (T, error) {
	var result T
	rv := reflect.ValueOf(&result).Elem()
	rt := rv.Type()
	if rt.Kind() != reflect.Struct {
		return result, fmt.Errorf("BindParams: T must be a struct, got %s", rt.Kind())
	}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("uri")
		if key == "" {
			key, _, _ = strings.Cut(field.Tag.Get("json"), ",")
		}
		if key == "" || key == "-" {
			continue
		}
		value, ok := params[key]
		if !ok {
			continue
		}
		if err := setField(rv.Field(i), value); err != nil {
			return result, protocol.InvalidParamsf("parameter %q: %v", key, err)
		}
	}
	return result, nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q", value)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid number %q", value)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
