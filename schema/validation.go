package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents a single schema violation.
type ValidationError struct {
	Path    string // JSON path to the invalid field (e.g., "user.email")
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("validation failed:")
	for _, err := range e {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate validates raw JSON against the schema. It returns nil when the
// document is valid, a *ValidationError for unparsable input and
// ValidationErrors for schema violations.
func (s *Schema) Validate(data json.RawMessage) error {
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage(`{}`)
	}
	if !json.Valid(data) {
		return &ValidationError{Message: "invalid JSON"}
	}
	return s.validate(gojsonschema.NewBytesLoader(data))
}

// ValidateValue validates a Go value against the schema.
func (s *Schema) ValidateValue(value any) error {
	return s.validate(gojsonschema.NewGoLoader(value))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) error {
	if s == nil {
		return nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s))
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid schema: %s", err)}
	}
	result, err := compiled.Validate(doc)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("validation: %s", err)}
	}
	if result.Valid() {
		return nil
	}
	errs := make(ValidationErrors, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		path := re.Field()
		if path == "(root)" {
			path = ""
		}
		errs = append(errs, &ValidationError{Path: path, Message: re.Description()})
	}
	return errs
}
